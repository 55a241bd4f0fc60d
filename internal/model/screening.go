package model

import "time"

// ScreeningStatus enumerates the lifecycle of a scheduled screening.
// Only AVAILABLE screenings accept new holds.
type ScreeningStatus string

const (
	ScreeningAvailable ScreeningStatus = "AVAILABLE" // open for booking
	ScreeningClosed    ScreeningStatus = "CLOSED"    // booking closed
	ScreeningCompleted ScreeningStatus = "COMPLETED" // screening finished
	ScreeningCancelled ScreeningStatus = "CANCELLED" // screening cancelled
)

// Screening represents a scheduled showing of a movie in a particular
// auditorium.  It owns the set of seat slots created when the screening
// is scheduled and carries the per-seat price used to compute the total
// for a reservation.
//
// Fields:
//  ID           – primary key identifier.
//  AuditoriumID – auditorium where the screening takes place.
//  MovieTitle   – movie title or an external catalog reference.
//  StartsAt     – when the screening begins.
//  EndsAt       – when the screening ends (must be after StartsAt).
//  PriceCents   – price in cents for one seat of this screening.
//  Status       – current state of the screening.
//  Version      – optimistic locking counter.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Screening struct {
	ID           uint64          // screenings.id
	AuditoriumID uint64          // screenings.auditorium_id
	MovieTitle   string          // screenings.movie_title
	StartsAt     time.Time       // screenings.starts_at
	EndsAt       time.Time       // screenings.ends_at
	PriceCents   uint32          // screenings.price_cents
	Status       ScreeningStatus // screenings.status
	Version      uint32          // screenings.version
	CreatedAt    time.Time       // screenings.created_at
	UpdatedAt    time.Time       // screenings.updated_at
}

// Bookable reports whether the screening currently accepts new holds.
func (s *Screening) Bookable() bool {
	return s.Status == ScreeningAvailable
}
