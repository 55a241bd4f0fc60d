package handler

import (
	"context"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// The interfaces below are the slices of the booking core and the
// repository layer the handlers call. The concrete types satisfy them;
// handler tests substitute mocks.

// HoldService acquires seat holds.
type HoldService interface {
	TryHold(ctx context.Context, in booking.HoldInput) (*model.Reservation, error)
}

// PaymentService opens payment attempts and applies gateway callbacks.
type PaymentService interface {
	Begin(ctx context.Context, res *model.Reservation, method model.PaymentMethod) (*model.Payment, error)
	HandleCallback(ctx context.Context, in booking.CallbackInput) error
}

// LedgerService releases reservations.
type LedgerService interface {
	Release(ctx context.Context, reservationID uint64, reason model.ReleaseReason) error
}

// ReservationViews reads reservations on behalf of their owner.
type ReservationViews interface {
	GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]repository.ReservationDetail, error)
	DetailByIDForUser(ctx context.Context, id, userID uint64) (*repository.ReservationDetail, error)
}
