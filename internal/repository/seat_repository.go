package repository // repository for physical seat persistence

import (
	"context"

	"github.com/movieon/reservation-core/internal/model"
)

// SeatRepo provides read access to the physical seat catalog. Seats are
// long-lived shared data sourced from the catalog collaborator; this
// service only reads them to build seat slots for new screenings.
type SeatRepo struct {
	store *Store
}

// NewSeatRepo returns a SeatRepo bound to the provided store.
func NewSeatRepo(store *Store) *SeatRepo { return &SeatRepo{store: store} }

// ActiveByAuditorium returns all in-service seats of an auditorium
// ordered by row and number. One seat slot is created per returned seat
// when a screening is scheduled.
func (r *SeatRepo) ActiveByAuditorium(ctx context.Context, auditoriumID uint64) ([]model.Seat, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT id, auditorium_id, row_label, seat_number, seat_type, is_active, created_at
		 FROM seats WHERE auditorium_id = ? AND is_active = 1
		 ORDER BY row_label, seat_number`, auditoriumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.RowLabel, &s.SeatNumber,
			&s.SeatType, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
