package repository // repository for seat slot persistence

import (
	"context"
	"strings"

	"github.com/movieon/reservation-core/internal/model"
)

// ScreeningSeatRepo encapsulates database operations for screening_seats,
// the contended inventory table. Every status mutation goes through one
// of the compare-and-set methods below: a guarded UPDATE that only
// applies when the slot is still in the expected state and, where
// relevant, still linked to the expected reservation. Rows-affected
// decides the winner between concurrent competitors; the version column
// is bumped on every transition.
type ScreeningSeatRepo struct {
	store *Store
}

// NewScreeningSeatRepo constructs a ScreeningSeatRepo given a Store.
func NewScreeningSeatRepo(store *Store) *ScreeningSeatRepo {
	return &ScreeningSeatRepo{store: store}
}

// CreateBulk inserts one slot per seat for a newly scheduled screening
// in a single statement. Only screening_id, seat_id and status are
// inserted; timestamps and version default in the DB.
func (r *ScreeningSeatRepo) CreateBulk(ctx context.Context, slots []model.ScreeningSeat) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO screening_seats (screening_id, seat_id, status) VALUES `
	args := make([]interface{}, 0, len(slots)*3)
	for i, sl := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		status := sl.Status
		if status == "" {
			status = model.SlotAvailable
		}
		args = append(args, sl.ScreeningID, sl.SeatID, status)
	}
	_, err := r.store.conn(ctx).ExecContext(ctx, query, args...)
	return err
}

const slotColumns = `id, screening_id, seat_id, status, reservation_id, version, created_at, updated_at`

// SlotsBySeatIDs returns the slots of a screening for the given seat
// ids. Callers compare the result length against the request to detect
// seats that do not belong to the screening.
func (r *ScreeningSeatRepo) SlotsBySeatIDs(ctx context.Context, screeningID uint64, seatIDs []uint64) ([]model.ScreeningSeat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, screeningID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+slotColumns+` FROM screening_seats
		 WHERE screening_id = ? AND seat_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

// Lock atomically transitions a slot AVAILABLE→LOCKED and links it to
// the reservation. It reports false when the slot was no longer
// AVAILABLE, i.e. a concurrent competitor won the seat.
func (r *ScreeningSeatRepo) Lock(ctx context.Context, slotID, reservationID uint64) (bool, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE screening_seats
		 SET status = 'LOCKED', reservation_id = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'AVAILABLE' AND reservation_id IS NULL`,
		reservationID, slotID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Unlock reverts a single slot LOCKED→AVAILABLE for the given
// reservation. It is the per-seat inverse of Lock, used when a group
// lock has to roll back seats it already acquired.
func (r *ScreeningSeatRepo) Unlock(ctx context.Context, slotID, reservationID uint64) (bool, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE screening_seats
		 SET status = 'AVAILABLE', reservation_id = NULL, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = 'LOCKED' AND reservation_id = ?`,
		slotID, reservationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// PromoteByReservation transitions all of a reservation's slots
// LOCKED→RESERVED when payment settles. It returns the number of slots
// promoted so the caller can verify the claim set was intact.
func (r *ScreeningSeatRepo) PromoteByReservation(ctx context.Context, reservationID uint64) (int64, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE screening_seats
		 SET status = 'RESERVED', version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE reservation_id = ? AND status = 'LOCKED'`, reservationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseByReservation reverts all of a reservation's slots in the given
// state back to AVAILABLE and clears the back-reference. from is LOCKED
// for pending releases and RESERVED for post-confirmation refunds.
func (r *ScreeningSeatRepo) ReleaseByReservation(ctx context.Context, reservationID uint64, from model.SeatSlotStatus) (int64, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE screening_seats
		 SET status = 'AVAILABLE', reservation_id = NULL, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE reservation_id = ? AND status = ?`, reservationID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SlotsByReservation returns all slots currently referencing the
// reservation.
func (r *ScreeningSeatRepo) SlotsByReservation(ctx context.Context, reservationID uint64) ([]model.ScreeningSeat, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+slotColumns+` FROM screening_seats WHERE reservation_id = ?`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

// OrphanedLocked returns LOCKED slots whose reservation back-reference
// is missing or points at a reservation that is no longer live. These
// violate the slot invariant and are surfaced by the sweeper as
// inventory corruption; they are never auto-healed.
func (r *ScreeningSeatRepo) OrphanedLocked(ctx context.Context, limit int) ([]model.ScreeningSeat, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+slotPrefixedColumns+` FROM screening_seats ss
		 LEFT JOIN reservations res ON res.id = ss.reservation_id
		 WHERE ss.status = 'LOCKED'
		   AND (ss.reservation_id IS NULL OR res.id IS NULL OR res.status NOT IN ('PENDING','CONFIRMED'))
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

const slotPrefixedColumns = `ss.id, ss.screening_id, ss.seat_id, ss.status, ss.reservation_id, ss.version, ss.created_at, ss.updated_at`

// SeatView is one entry of the public seat map for a screening.
type SeatView struct {
	SeatID     uint64               `json:"seat_id"`
	RowLabel   string               `json:"row_label"`
	SeatNumber uint32               `json:"seat_number"`
	SeatType   model.SeatType       `json:"seat_type"`
	Status     model.SeatSlotStatus `json:"status"`
}

// SeatMapByScreening returns every slot of a screening joined with its
// physical seat, ordered by row and number, for the public seat map.
func (r *ScreeningSeatRepo) SeatMapByScreening(ctx context.Context, screeningID uint64) ([]SeatView, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT s.id, s.row_label, s.seat_number, s.seat_type, ss.status
		 FROM screening_seats ss
		 JOIN seats s ON s.id = ss.seat_id
		 WHERE ss.screening_id = ?
		 ORDER BY s.row_label, s.seat_number`, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SeatView
	for rows.Next() {
		var v SeatView
		if err := rows.Scan(&v.SeatID, &v.RowLabel, &v.SeatNumber, &v.SeatType, &v.Status); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanSlots(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]model.ScreeningSeat, error) {
	var out []model.ScreeningSeat
	for rows.Next() {
		var sl model.ScreeningSeat
		if err := rows.Scan(&sl.ID, &sl.ScreeningID, &sl.SeatID, &sl.Status,
			&sl.ReservationID, &sl.Version, &sl.CreatedAt, &sl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}
