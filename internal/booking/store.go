package booking

import (
	"context"
	"time"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/queue"
)

// The interfaces below are the slices of the repository layer the
// reservation core depends on. They are satisfied by the concrete
// MySQL repositories and by in-memory fakes in tests. A transaction
// opened through Tx travels in the context, so calls made by different
// components inside one WithTx closure join the same transaction.

// Tx scopes a group of repository calls to one atomic commit.
type Tx interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Screenings is the read-only view of the screening catalog the hold
// path needs.
type Screenings interface {
	GetByID(ctx context.Context, id uint64) (*model.Screening, error)
}

// Inventory exposes the compare-and-set transitions over seat slots.
// All slot mutations anywhere in the system go through these methods.
type Inventory interface {
	SlotsBySeatIDs(ctx context.Context, screeningID uint64, seatIDs []uint64) ([]model.ScreeningSeat, error)
	SlotsByReservation(ctx context.Context, reservationID uint64) ([]model.ScreeningSeat, error)
	Lock(ctx context.Context, slotID, reservationID uint64) (bool, error)
	Unlock(ctx context.Context, slotID, reservationID uint64) (bool, error)
	PromoteByReservation(ctx context.Context, reservationID uint64) (int64, error)
	ReleaseByReservation(ctx context.Context, reservationID uint64, from model.SeatSlotStatus) (int64, error)
	OrphanedLocked(ctx context.Context, limit int) ([]model.ScreeningSeat, error)
}

// Reservations persists checkout attempts and serializes their
// transitions per reservation id.
type Reservations interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	Transition(ctx context.Context, id uint64, from, to model.ReservationStatus) error
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
}

// Payments persists settlement attempts.
type Payments interface {
	Create(ctx context.Context, p *model.Payment) error
	PendingByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
	SettledByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
	MarkSettled(ctx context.Context, id uint64, gatewayRef string, paidAt time.Time) error
	MarkFailed(ctx context.Context, id uint64, gatewayRef, reason string, at time.Time) error
	MarkCancelled(ctx context.Context, id uint64, from model.PaymentStatus, reason string, at time.Time) error
}

// PaymentRequest is the order submitted to the external payment
// gateway. The gateway answers asynchronously through the
// payment-callback endpoint.
type PaymentRequest struct {
	ReservationID uint64
	MerchantRef   string
	AmountCents   uint32
	Currency      string
	Method        model.PaymentMethod
}

// Gateway is the outbound payment collaborator.
type Gateway interface {
	Submit(ctx context.Context, req PaymentRequest) error
}

// Publisher emits reservation lifecycle events for downstream
// collaborators (notification/mail). Implementations must never block
// the request path on broker failures; errors are logged and dropped.
type Publisher interface {
	ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent)
	ReservationReleased(ctx context.Context, ev queue.ReservationReleasedEvent)
}
