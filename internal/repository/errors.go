// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking services and handlers to distinguish between different failure
// scenarios without inspecting SQL errors. For example, ErrStaleTransition
// signals that a compare-and-set transition lost a race against a
// concurrent competitor, while SeatUnavailableError carries the exact
// seat ids that could not be locked so the client can retry with a
// different selection.
package repository

import (
	"errors"
	"fmt"
)

// ErrScreeningNotFound is returned when a screening id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrScreeningNotFound = errors.New("screening not found")

// ErrReservationNotFound is returned when a reservation id does not
// exist or is not visible to the requesting actor.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrPaymentNotFound is returned when no payment attempt matches the
// given reservation or gateway reference.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrStaleTransition is returned when a status-guarded update affects
// zero rows: the reservation, payment or seat slot has already been
// moved to a different state by a concurrent competitor. Callers must
// treat it as a benign duplicate and must not re-apply side effects.
var ErrStaleTransition = errors.New("stale transition")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// SeatUnavailableError reports the seat ids in a hold request that were
// not AVAILABLE at lock time. The whole hold is aborted; no partial
// state survives.
type SeatUnavailableError struct {
	SeatIDs []uint64
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatIDs)
}

// CorruptionError reports a seat slot whose status disagrees with its
// reservation back-reference. It is fatal for that slot and requires
// manual reconciliation; the sweeper only reports it and never heals
// the slot.
type CorruptionError struct {
	SlotID uint64
	Detail string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("inventory corruption on slot %d: %s", e.SlotID, e.Detail)
}
