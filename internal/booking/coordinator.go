package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// Callback outcomes reported by the payment gateway.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
)

// Coordinator drives a reservation's payment attempt: it opens the
// attempt when the hold commits, submits the order to the gateway and
// applies the asynchronous gateway callback. Settlement is the only
// path into Ledger.Finalize, so a reservation can never become
// CONFIRMED without a settled payment behind it.
type Coordinator struct {
	tx           Tx
	reservations Reservations
	payments     Payments
	gateway      Gateway
	ledger       *Ledger
	clock        Clock
	currency     string
	log          *logrus.Logger
}

// NewCoordinator constructs a Coordinator. currency is the ISO code
// all orders are denominated in; amounts arriving in any other
// currency fail the callback integrity check.
func NewCoordinator(tx Tx, reservations Reservations, payments Payments, gateway Gateway, ledger *Ledger, clock Clock, currency string, log *logrus.Logger) *Coordinator {
	if currency == "" {
		currency = "USD"
	}
	return &Coordinator{
		tx:           tx,
		reservations: reservations,
		payments:     payments,
		gateway:      gateway,
		ledger:       ledger,
		clock:        clock,
		currency:     currency,
		log:          log,
	}
}

// Begin opens the payment attempt for a freshly held reservation and
// submits the order to the gateway in the background. The submission
// error only logs: the seats stay LOCKED either until the gateway
// calls back or until the hold TTL reclaims them, so a lost
// submission costs nothing but the hold window.
func (c *Coordinator) Begin(ctx context.Context, res *model.Reservation, method model.PaymentMethod) (*model.Payment, error) {
	if method == "" {
		method = model.MethodOther
	}
	p := &model.Payment{
		ReservationID: res.ID,
		UserID:        res.UserID,
		AmountCents:   res.TotalAmountCents,
		Method:        method,
		Status:        model.PaymentPending,
		MerchantRef:   uuid.NewString(),
	}
	err := c.tx.WithTx(ctx, func(ctx context.Context) error {
		return c.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	req := PaymentRequest{
		ReservationID: res.ID,
		MerchantRef:   p.MerchantRef,
		AmountCents:   p.AmountCents,
		Currency:      c.currency,
		Method:        method,
	}
	go func() {
		if err := c.gateway.Submit(context.Background(), req); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"reservation_id": res.ID,
				"merchant_ref":   p.MerchantRef,
			}).Error("payment gateway submission failed")
		}
	}()
	return p, nil
}

// CallbackInput is the gateway's asynchronous settlement report.
type CallbackInput struct {
	ReservationID uint64
	GatewayRef    string
	AmountCents   uint32
	Currency      string
	Outcome       string
	Reason        string
}

// HandleCallback applies one gateway callback.
//
// On a success outcome the amount and currency are checked against the
// pending attempt before anything settles; a mismatch marks the
// attempt FAILED, releases the reservation with reason AMOUNT_MISMATCH
// and reports ErrPaymentRejected. A clean success settles the attempt
// and finalizes the reservation. If the reservation was already
// reclaimed by the sweeper, the settled attempt is cancelled back
// (refund) and ErrHoldExpired is reported.
//
// On a failure outcome the attempt is marked FAILED and the
// reservation released with reason PAYMENT_FAILED.
//
// A retried callback for an attempt already settled with the same
// gateway reference re-drives the finalize: settling and confirming
// commit separately, so the first delivery may have died in between.
// Finalize is idempotent, so a fully applied duplicate stays a no-op.
// Any other replay loses the per-reservation race and gets
// ErrStaleTransition.
func (c *Coordinator) HandleCallback(ctx context.Context, in CallbackInput) error {
	var (
		payment  *model.Payment
		mismatch bool
	)
	err := c.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := c.payments.PendingByReservation(ctx, in.ReservationID)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			settled, serr := c.payments.SettledByReservation(ctx, in.ReservationID)
			if serr == nil && settled.GatewayRef == in.GatewayRef && in.Outcome == OutcomeSuccess {
				// Retry of an applied success. Fall through to the
				// finalize below: if the first delivery died after
				// settling, the reservation is still PENDING and the
				// money captured, and only the retry can confirm it.
				payment = settled
				return nil
			}
			return repository.ErrStaleTransition
		}
		if err != nil {
			return err
		}
		payment = p

		if in.Outcome != OutcomeSuccess {
			return c.payments.MarkFailed(ctx, p.ID, in.GatewayRef, in.Reason, c.clock.Now())
		}
		if in.AmountCents != p.AmountCents || in.Currency != c.currency {
			mismatch = true
			c.log.WithFields(logrus.Fields{
				"reservation_id": in.ReservationID,
				"payment_id":     p.ID,
				"want_cents":     p.AmountCents,
				"got_cents":      in.AmountCents,
				"got_currency":   in.Currency,
			}).Warn("payment callback failed integrity check")
			return c.payments.MarkFailed(ctx, p.ID, in.GatewayRef, "amount or currency mismatch", c.clock.Now())
		}
		return c.payments.MarkSettled(ctx, p.ID, in.GatewayRef, c.clock.Now())
	})
	if err != nil {
		return err
	}

	if mismatch {
		if err := c.ledger.Release(ctx, in.ReservationID, model.ReleaseAmountMismatch); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
		return ErrPaymentRejected
	}
	if in.Outcome != OutcomeSuccess {
		if err := c.ledger.Release(ctx, in.ReservationID, model.ReleasePaymentFailed); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
		return ErrPaymentRejected
	}

	err = c.ledger.Finalize(ctx, in.ReservationID, payment)
	if errors.Is(err, repository.ErrStaleTransition) {
		// The sweeper reclaimed the hold before the callback landed.
		// The money was captured, so cancel the settled attempt back.
		rerr := c.tx.WithTx(ctx, func(ctx context.Context) error {
			return c.payments.MarkCancelled(ctx, payment.ID, model.PaymentPaid, string(model.ReleaseExpired), c.clock.Now())
		})
		if rerr != nil {
			return rerr
		}
		c.log.WithFields(logrus.Fields{
			"reservation_id": in.ReservationID,
			"payment_id":     payment.ID,
		}).Warn("late payment callback refunded: hold already expired")
		return ErrHoldExpired
	}
	return err
}
