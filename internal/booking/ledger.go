package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/queue"
	"github.com/movieon/reservation-core/internal/repository"
)

// Ledger owns the reservation state machine. Every transition funnels
// through a status-guarded update on the reservation row, so among any
// number of concurrent actors (payment callback, user cancel, sweeper)
// exactly one wins and the rest observe ErrStaleTransition.
type Ledger struct {
	tx           Tx
	inventory    Inventory
	reservations Reservations
	payments     Payments
	publisher    Publisher
	clock        Clock
	log          *logrus.Logger
}

// NewLedger constructs a Ledger. publisher may be nil when no broker is
// configured; events are then dropped.
func NewLedger(tx Tx, inventory Inventory, reservations Reservations, payments Payments, publisher Publisher, clock Clock, log *logrus.Logger) *Ledger {
	return &Ledger{
		tx:           tx,
		inventory:    inventory,
		reservations: reservations,
		payments:     payments,
		publisher:    publisher,
		clock:        clock,
		log:          log,
	}
}

// Finalize moves a PENDING reservation to CONFIRMED and promotes its
// LOCKED seat slots to RESERVED, driven by the settled payment. It is
// idempotent: if the reservation is already CONFIRMED the call is a
// no-op reporting success. Any other terminal state fails with
// ErrStaleTransition because the seats have already been released.
func (l *Ledger) Finalize(ctx context.Context, reservationID uint64, payment *model.Payment) error {
	var ev *queue.ReservationConfirmedEvent
	err := l.tx.WithTx(ctx, func(ctx context.Context) error {
		err := l.reservations.Transition(ctx, reservationID, model.ReservationPending, model.ReservationConfirmed)
		if errors.Is(err, repository.ErrStaleTransition) {
			res, gerr := l.reservations.GetByID(ctx, reservationID)
			if gerr != nil {
				return gerr
			}
			if res.Status == model.ReservationConfirmed {
				// A concurrent duplicate already finalized; nothing to redo.
				return nil
			}
			return repository.ErrStaleTransition
		}
		if err != nil {
			return err
		}

		slots, err := l.inventory.SlotsByReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		promoted, err := l.inventory.PromoteByReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if promoted != int64(len(slots)) {
			return fmt.Errorf("reservation %d: promoted %d of %d locked slots", reservationID, promoted, len(slots))
		}

		res, err := l.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		seatIDs := make([]uint64, 0, len(slots))
		for _, sl := range slots {
			seatIDs = append(seatIDs, sl.SeatID)
		}
		ev = &queue.ReservationConfirmedEvent{
			ReservationID:    res.ID,
			UserID:           res.UserID,
			ScreeningID:      res.ScreeningID,
			SeatIDs:          seatIDs,
			TotalAmountCents: res.TotalAmountCents,
			PaymentID:        payment.ID,
			ConfirmedAt:      l.clock.Now().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ev != nil && l.publisher != nil {
		l.publisher.ReservationConfirmed(ctx, *ev)
	}
	return nil
}

// Release tears a reservation down and returns its seat slots to
// AVAILABLE. The terminal status and the slot states touched depend on
// the reason:
//
//   - EXPIRED, PAYMENT_FAILED, AMOUNT_MISMATCH act only on PENDING
//     reservations and release LOCKED slots.
//   - USER_CANCEL acts on PENDING the same way, and additionally on
//     CONFIRMED as a refund: RESERVED slots are released and the settled
//     payment is cancelled.
//
// Losing the per-reservation race returns ErrStaleTransition; the
// caller must not retry with side effects.
func (l *Ledger) Release(ctx context.Context, reservationID uint64, reason model.ReleaseReason) error {
	var ev *queue.ReservationReleasedEvent
	err := l.tx.WithTx(ctx, func(ctx context.Context) error {
		to := model.ReservationCancelled
		if reason == model.ReleaseExpired {
			to = model.ReservationExpired
		}

		from := model.ReservationPending
		slotFrom := model.SlotLocked
		refund := false

		err := l.reservations.Transition(ctx, reservationID, from, to)
		if errors.Is(err, repository.ErrStaleTransition) && reason == model.ReleaseUserCancel {
			// Not PENDING anymore; a user cancel may still refund a
			// CONFIRMED reservation.
			from = model.ReservationConfirmed
			slotFrom = model.SlotReserved
			refund = true
			err = l.reservations.Transition(ctx, reservationID, from, to)
		}
		if err != nil {
			return err
		}

		if _, err := l.inventory.ReleaseByReservation(ctx, reservationID, slotFrom); err != nil {
			return err
		}

		if err := l.settleReleasedPayment(ctx, reservationID, reason, refund); err != nil {
			return err
		}

		res, err := l.reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		ev = &queue.ReservationReleasedEvent{
			ReservationID: res.ID,
			UserID:        res.UserID,
			ScreeningID:   res.ScreeningID,
			Reason:        string(reason),
			ReleasedAt:    l.clock.Now().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ev != nil && l.publisher != nil {
		l.publisher.ReservationReleased(ctx, *ev)
	}
	return nil
}

// MarkUsed consumes a CONFIRMED reservation at the venue gate.
func (l *Ledger) MarkUsed(ctx context.Context, reservationID uint64) error {
	return l.tx.WithTx(ctx, func(ctx context.Context) error {
		return l.reservations.Transition(ctx, reservationID, model.ReservationConfirmed, model.ReservationUsed)
	})
}

// settleReleasedPayment closes whatever payment attempt the released
// reservation still carries. A pending attempt is cancelled with the
// release reason; on refund the settled attempt is cancelled instead.
// Having no attempt at all is normal for holds cancelled before
// checkout.
//
// Expiry is the exception: the sweeper leaves a pending attempt open,
// because the gateway will still call back for it. The coordinator
// then either fails the attempt (failure outcome) or settles and
// immediately refunds it (success landed after the TTL).
func (l *Ledger) settleReleasedPayment(ctx context.Context, reservationID uint64, reason model.ReleaseReason, refund bool) error {
	if reason == model.ReleaseExpired {
		return nil
	}
	now := l.clock.Now()
	if refund {
		p, err := l.payments.SettledByReservation(ctx, reservationID)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return l.payments.MarkCancelled(ctx, p.ID, p.Status, string(reason), now)
	}

	p, err := l.payments.PendingByReservation(ctx, reservationID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := l.payments.MarkCancelled(ctx, p.ID, model.PaymentPending, string(reason), now); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			// The callback settled it between our reads; the release of
			// the reservation row already won, so just log and move on.
			l.log.WithFields(logrus.Fields{
				"payment_id":     p.ID,
				"reservation_id": reservationID,
			}).Warn("pending payment settled while releasing reservation")
			return nil
		}
		return err
	}
	return nil
}
