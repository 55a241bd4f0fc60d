package repository // repository for screening persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/movieon/reservation-core/internal/model"
)

// ScreeningRepo encapsulates database operations for screenings.
type ScreeningRepo struct {
	store *Store
}

// NewScreeningRepo constructs a ScreeningRepo given a Store.
func NewScreeningRepo(store *Store) *ScreeningRepo {
	return &ScreeningRepo{store: store}
}

const screeningColumns = `id, auditorium_id, movie_title, starts_at, ends_at, price_cents, status, version, created_at, updated_at`

func scanScreening(row *sql.Row) (*model.Screening, error) {
	var s model.Screening
	err := row.Scan(&s.ID, &s.AuditoriumID, &s.MovieTitle, &s.StartsAt, &s.EndsAt,
		&s.PriceCents, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScreeningNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByID loads a screening by its primary key. It returns
// ErrScreeningNotFound when no row exists.
func (r *ScreeningRepo) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT `+screeningColumns+` FROM screenings WHERE id = ?`, id)
	return scanScreening(row)
}

// Create inserts a new screening and populates the generated ID and
// timestamps on the provided struct. Status defaults to AVAILABLE when
// empty.
func (r *ScreeningRepo) Create(ctx context.Context, s *model.Screening) error {
	if s.Status == "" {
		s.Status = model.ScreeningAvailable
	}
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO screenings (auditorium_id, movie_title, starts_at, ends_at, price_cents, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.AuditoriumID, s.MovieTitle, s.StartsAt.UTC(), s.EndsAt.UTC(), s.PriceCents, s.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	loaded, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *loaded
	return nil
}

// FindOverlapping returns screenings in the same auditorium whose time
// window intersects [startsAt, endsAt). Used to reject double-booked
// auditoriums when scheduling.
func (r *ScreeningRepo) FindOverlapping(ctx context.Context, auditoriumID uint64, startsAt, endsAt time.Time) ([]model.Screening, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+screeningColumns+` FROM screenings
		 WHERE auditorium_id = ? AND status IN ('AVAILABLE','CLOSED')
		   AND starts_at < ? AND ends_at > ?`,
		auditoriumID, endsAt.UTC(), startsAt.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Screening
	for rows.Next() {
		var s model.Screening
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.MovieTitle, &s.StartsAt, &s.EndsAt,
			&s.PriceCents, &s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
