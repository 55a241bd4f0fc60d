package model

import "time"

// SeatType classifies a physical seat.  The values follow the catalog
// collaborator's seat taxonomy.
type SeatType string

const (
	SeatNormal     SeatType = "NORMAL"     // standard seat
	SeatCouple     SeatType = "COUPLE"     // couple/double seat
	SeatAccessible SeatType = "ACCESSIBLE" // wheelchair accessible seat
	SeatVIP        SeatType = "VIP"        // VIP seat
	SeatPremium    SeatType = "PREMIUM"    // premium seat
)

// Seat describes a physical seat in an auditorium.  Seats are immutable
// once created and are never owned by a reservation directly; only the
// per-screening seat slot (ScreeningSeat) is reservable.
//
// Fields:
//  ID           – primary key identifier.
//  AuditoriumID – auditorium to which this seat belongs.
//  RowLabel     – letter or string designating the row.
//  SeatNumber   – number of the seat within the row.
//  SeatType     – type of seat (NORMAL, COUPLE, ACCESSIBLE, VIP, PREMIUM).
//  IsActive     – whether the seat is in service.
//  CreatedAt    – creation timestamp.
type Seat struct {
	ID           uint64    // seats.id
	AuditoriumID uint64    // seats.auditorium_id
	RowLabel     string    // seats.row_label
	SeatNumber   uint32    // seats.seat_number
	SeatType     SeatType  // seats.seat_type
	IsActive     bool      // seats.is_active
	CreatedAt    time.Time // seats.created_at
}
