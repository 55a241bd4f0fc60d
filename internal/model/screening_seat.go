package model

import "time"

// SeatSlotStatus enumerates the states of a per-screening seat slot.
// AVAILABLE slots may be locked by a hold; LOCKED slots belong to a
// pending reservation awaiting payment; RESERVED slots belong to a
// confirmed reservation.  CLOSED, UNAVAILABLE and COMPLETED are
// administrative states never touched by the hold path.
type SeatSlotStatus string

const (
	SlotAvailable   SeatSlotStatus = "AVAILABLE"   // open for holds
	SlotLocked      SeatSlotStatus = "LOCKED"      // held during payment
	SlotReserved    SeatSlotStatus = "RESERVED"    // sold
	SlotClosed      SeatSlotStatus = "CLOSED"      // booking closed
	SlotUnavailable SeatSlotStatus = "UNAVAILABLE" // not sellable
	SlotCompleted   SeatSlotStatus = "COMPLETED"   // screening finished
)

// ScreeningSeat is the reservable unit: the pairing of one Seat with one
// Screening.  One slot per auditorium seat is created when a screening
// is scheduled.  The slot's status and its reservation back-reference
// must always agree: LOCKED/RESERVED imply a live reservation reference,
// AVAILABLE implies none.  At most one non-cancelled, non-expired
// reservation may reference a slot at any time.
//
// Fields:
//  ID            – primary key identifier.
//  ScreeningID   – screening to which this slot belongs.
//  SeatID        – physical seat backing the slot.
//  Status        – availability status.
//  ReservationID – reservation currently claiming the slot (nil when
//                  AVAILABLE).
//  Version       – optimistic locking counter bumped by every
//                  compare-and-set transition.
//  CreatedAt     – timestamp when the slot was created.
//  UpdatedAt     – timestamp when the slot was last transitioned.
type ScreeningSeat struct {
	ID            uint64         // screening_seats.id
	ScreeningID   uint64         // screening_seats.screening_id
	SeatID        uint64         // screening_seats.seat_id
	Status        SeatSlotStatus // screening_seats.status
	ReservationID *uint64        // screening_seats.reservation_id (nullable)
	Version       uint32         // screening_seats.version
	CreatedAt     time.Time      // screening_seats.created_at
	UpdatedAt     time.Time      // screening_seats.updated_at
}
