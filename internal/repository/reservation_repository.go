package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/movieon/reservation-core/internal/model"
)

// ReservationRepo provides persistence for reservations. All state
// changes go through Transition, a status-guarded compare-and-set that
// serializes competing finalize/release calls per reservation: exactly
// one competitor observes rows-affected == 1, every other caller gets
// ErrStaleTransition and must not re-apply its side effects.
type ReservationRepo struct {
	store *Store
}

// NewReservationRepo returns a ReservationRepo bound to the given store.
func NewReservationRepo(store *Store) *ReservationRepo { return &ReservationRepo{store: store} }

const reservationColumns = `id, user_id, screening_id, status, total_amount_cents, hold_token, hold_expires_at, version, created_at, updated_at`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.ScreeningID, &res.Status, &res.TotalAmountCents,
		&res.HoldToken, &res.HoldExpiresAt, &res.Version, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Create inserts a new reservation in PENDING state and populates the
// generated ID and timestamps on the provided record.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if res.Status == "" {
		res.Status = model.ReservationPending
	}
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO reservations (user_id, screening_id, status, total_amount_cents, hold_token, hold_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.UserID, res.ScreeningID, res.Status, res.TotalAmountCents, res.HoldToken, res.HoldExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	loaded, err := r.GetByID(ctx, res.ID)
	if err != nil {
		return err
	}
	*res = *loaded
	return nil
}

// GetByID loads a reservation by primary key.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// GetByIDForUser loads a reservation and enforces ownership. It returns
// ErrReservationNotFound when no row exists and ErrForbidden when the
// reservation belongs to a different user.
func (r *ReservationRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, ErrForbidden
	}
	return res, nil
}

// Transition applies a status-guarded update: the reservation moves
// from→to only when it is still in the from state. Zero affected rows
// means a concurrent competitor already moved it; the caller receives
// ErrStaleTransition.
func (r *ReservationRepo) Transition(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ExpiredPending returns up to limit PENDING reservations whose hold
// expiry has passed, oldest first. The sweeper releases each of them
// individually so a reservation finalized between the scan and the
// release simply loses the per-reservation race and stays confirmed.
func (r *ReservationRepo) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = 'PENDING' AND hold_expires_at <= ?
		 ORDER BY hold_expires_at LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.ScreeningID, &res.Status, &res.TotalAmountCents,
			&res.HoldToken, &res.HoldExpiresAt, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ReservationDetail couples a reservation with its screening and the
// claimed seats for display to customers.
type ReservationDetail struct {
	ID               uint64                  `json:"id"`
	ScreeningID      uint64                  `json:"screening_id"`
	Status           model.ReservationStatus `json:"status"`
	TotalAmountCents uint32                  `json:"total_amount_cents"`
	MovieTitle       string                  `json:"movie_title"`
	StartsAt         time.Time               `json:"starts_at"`
	EndsAt           time.Time               `json:"ends_at"`
	HoldExpiresAt    time.Time               `json:"hold_expires_at"`
	Seats            []ReservedSeat          `json:"seats"`
}

// ReservedSeat identifies one claimed seat inside a ReservationDetail.
type ReservedSeat struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
}

// ListByUser returns all reservations created by the user, newest
// first, with screening and seat details attached.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT res.id, res.screening_id, res.status, res.total_amount_cents, res.hold_expires_at,
				sc.movie_title, sc.starts_at, sc.ends_at
		 FROM reservations res
		 JOIN screenings sc ON sc.id = res.screening_id
		 WHERE res.user_id = ?
		 ORDER BY res.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []ReservationDetail
	for rows.Next() {
		var d ReservationDetail
		if err := rows.Scan(&d.ID, &d.ScreeningID, &d.Status, &d.TotalAmountCents, &d.HoldExpiresAt,
			&d.MovieTitle, &d.StartsAt, &d.EndsAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range details {
		seats, err := r.seatsForReservation(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Seats = seats
	}
	return details, nil
}

// DetailByIDForUser returns the full detail of one reservation owned by
// the user.
func (r *ReservationRepo) DetailByIDForUser(ctx context.Context, id, userID uint64) (*ReservationDetail, error) {
	res, err := r.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT movie_title, starts_at, ends_at FROM screenings WHERE id = ?`, res.ScreeningID)
	d := ReservationDetail{
		ID:               res.ID,
		ScreeningID:      res.ScreeningID,
		Status:           res.Status,
		TotalAmountCents: res.TotalAmountCents,
		HoldExpiresAt:    res.HoldExpiresAt,
	}
	if err := row.Scan(&d.MovieTitle, &d.StartsAt, &d.EndsAt); err != nil {
		return nil, err
	}
	seats, err := r.seatsForReservation(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	d.Seats = seats
	return &d, nil
}

func (r *ReservationRepo) seatsForReservation(ctx context.Context, reservationID uint64) ([]ReservedSeat, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT s.id, s.row_label, s.seat_number
		 FROM screening_seats ss
		 JOIN seats s ON s.id = ss.seat_id
		 WHERE ss.reservation_id = ?
		 ORDER BY s.row_label, s.seat_number`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []ReservedSeat
	for rows.Next() {
		var s ReservedSeat
		if err := rows.Scan(&s.SeatID, &s.RowLabel, &s.SeatNumber); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
