package model

import "time"

// ReservationStatus enumerates the states of a checkout attempt.
// PENDING and CONFIRMED are mutually exclusive machine-enforced states:
// a reservation is PENDING exactly while payment is in flight and only
// a settled payment moves it to CONFIRMED.  CANCELLED, USED and EXPIRED
// are terminal alongside CONFIRMED.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"   // hold acquired, awaiting payment
	ReservationConfirmed ReservationStatus = "CONFIRMED" // payment settled
	ReservationCancelled ReservationStatus = "CANCELLED" // released by user or gateway failure
	ReservationUsed      ReservationStatus = "USED"      // ticket consumed
	ReservationExpired   ReservationStatus = "EXPIRED"   // reclaimed by the sweeper
)

// Terminal reports whether the status admits no further transitions
// other than CONFIRMED→CANCELLED (refund) and CONFIRMED→USED.
func (s ReservationStatus) Terminal() bool {
	return s != ReservationPending
}

// ReleaseReason describes why a reservation was released.  It selects
// the terminal status applied by the ledger and is recorded on the
// cancelled payment attempt, if any.
type ReleaseReason string

const (
	ReleaseUserCancel     ReleaseReason = "USER_CANCEL"     // explicit actor cancellation
	ReleasePaymentFailed  ReleaseReason = "PAYMENT_FAILED"  // gateway reported failure
	ReleaseAmountMismatch ReleaseReason = "AMOUNT_MISMATCH" // callback integrity check failed
	ReleaseExpired        ReleaseReason = "EXPIRED"         // hold TTL elapsed
)

// Reservation records one checkout attempt: an actor, a screening and
// the set of seat slots the attempt claims.  It is created in PENDING
// by a successful hold and mutated only by the payment coordinator and
// the expiry sweeper.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – actor who made the checkout attempt.
//  ScreeningID      – screening being reserved.
//  Status           – state of the reservation.
//  TotalAmountCents – total price in cents for all claimed seats.
//  HoldToken        – opaque token returned to the client for correlation.
//  HoldExpiresAt    – instant after which a PENDING reservation may be
//                     reclaimed by the sweeper.
//  Version          – optimistic locking counter.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
	ID               uint64            // reservations.id
	UserID           uint64            // reservations.user_id
	ScreeningID      uint64            // reservations.screening_id
	Status           ReservationStatus // reservations.status
	TotalAmountCents uint32            // reservations.total_amount_cents
	HoldToken        string            // reservations.hold_token
	HoldExpiresAt    time.Time         // reservations.hold_expires_at
	Version          uint32            // reservations.version
	CreatedAt        time.Time         // reservations.created_at
	UpdatedAt        time.Time         // reservations.updated_at
}
