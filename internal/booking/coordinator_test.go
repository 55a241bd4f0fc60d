package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// holdAndBegin drives a hold plus payment start for one user and
// returns the pending reservation and payment.
func holdAndBegin(t *testing.T, e *env, seats ...uint64) (*model.Reservation, *model.Payment) {
	t.Helper()
	ctx := context.Background()
	res, err := e.holds.TryHold(ctx, booking.HoldInput{ScreeningID: 1, SeatIDs: seats, UserID: 7})
	require.NoError(t, err)
	p, err := e.coord.Begin(ctx, res, model.MethodCard)
	require.NoError(t, err)
	return res, p
}

func waitForSubmission(t *testing.T, e *env) booking.PaymentRequest {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.gateway.mu.Lock()
		n := len(e.gateway.requests)
		var req booking.PaymentRequest
		if n > 0 {
			req = e.gateway.requests[n-1]
		}
		e.gateway.mu.Unlock()
		if n > 0 {
			return req
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("gateway submission never happened")
	return booking.PaymentRequest{}
}

func TestCoordinatorBegin(t *testing.T) {
	e := newEnv(t)
	e.addScreening(1, 2000, model.ScreeningAvailable)
	e.addSlots(1, 10, 11)

	res, p := holdAndBegin(t, e, 10, 11)

	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, res.TotalAmountCents, p.AmountCents)
	assert.NotEmpty(t, p.MerchantRef)

	req := waitForSubmission(t, e)
	assert.Equal(t, res.ID, req.ReservationID)
	assert.Equal(t, p.MerchantRef, req.MerchantRef)
	assert.Equal(t, uint32(4000), req.AmountCents)
	assert.Equal(t, "USD", req.Currency)

	// A second attempt while one is pending loses.
	_, err := e.coord.Begin(context.Background(), res, model.MethodCard)
	assert.ErrorIs(t, err, repository.ErrStaleTransition)
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("success settles payment and confirms reservation", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10, 11)
		res, p := holdAndBegin(t, e, 10, 11)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		})
		require.NoError(t, err)

		assert.Equal(t, model.ReservationConfirmed, e.reservation(res.ID).Status)
		got := e.payment(p.ID)
		assert.Equal(t, model.PaymentPaid, got.Status)
		assert.Equal(t, "gw-123", got.GatewayRef)
		require.NotNil(t, got.PaidAt)
		for _, slotID := range slots {
			assert.Equal(t, model.SlotReserved, e.slot(slotID).Status)
		}

		require.Len(t, e.pub.confirmed, 1)
		ev := e.pub.confirmed[0]
		assert.Equal(t, res.ID, ev.ReservationID)
		assert.ElementsMatch(t, []uint64{10, 11}, ev.SeatIDs)
		assert.Equal(t, p.ID, ev.PaymentID)
	})

	t.Run("duplicate success callback is a no-op", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		cb := booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		}
		require.NoError(t, e.coord.HandleCallback(ctx, cb))
		require.NoError(t, e.coord.HandleCallback(ctx, cb))

		assert.Equal(t, model.ReservationConfirmed, e.reservation(res.ID).Status)
		assert.Len(t, e.pub.confirmed, 1, "confirmation must be published once")
	})

	t.Run("retry confirms a reservation left pending by a settled attempt", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		// The first delivery settled the money and then died before the
		// reservation confirmed; the gateway retries the same callback.
		require.NoError(t, e.store.MarkSettled(ctx, p.ID, "gw-123", e.clock.Now()))
		require.Equal(t, model.ReservationPending, e.reservation(res.ID).Status)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		})
		require.NoError(t, err)

		assert.Equal(t, model.ReservationConfirmed, e.reservation(res.ID).Status)
		assert.Equal(t, model.SlotReserved, e.slot(slots[10]).Status)
		require.Len(t, e.pub.confirmed, 1)
	})

	t.Run("retry after the sweeper reclaimed a settled attempt refunds", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		require.NoError(t, e.store.MarkSettled(ctx, p.ID, "gw-123", e.clock.Now()))
		e.clock.Advance(testHoldTTL + time.Second)
		require.NoError(t, e.sweeper.SweepOnce(ctx))
		require.Equal(t, model.ReservationExpired, e.reservation(res.ID).Status)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		})
		assert.ErrorIs(t, err, booking.ErrHoldExpired)

		got := e.payment(p.ID)
		assert.Equal(t, model.PaymentCancelled, got.Status)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, string(model.ReleaseExpired), *got.CancelReason)
		assert.Equal(t, model.SlotAvailable, e.slot(slots[10]).Status)
		assert.Empty(t, e.pub.confirmed)
	})

	t.Run("replay with a different gateway ref loses", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		cb := booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		}
		require.NoError(t, e.coord.HandleCallback(ctx, cb))

		cb.GatewayRef = "gw-456"
		assert.ErrorIs(t, e.coord.HandleCallback(ctx, cb), repository.ErrStaleTransition)
	})

	t.Run("failure outcome releases the reservation", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10, 11)
		res, p := holdAndBegin(t, e, 10, 11)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			Outcome:       booking.OutcomeFailed,
			Reason:        "card declined",
		})
		assert.ErrorIs(t, err, booking.ErrPaymentRejected)

		assert.Equal(t, model.ReservationCancelled, e.reservation(res.ID).Status)
		got := e.payment(p.ID)
		assert.Equal(t, model.PaymentFailed, got.Status)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, "card declined", *got.CancelReason)
		for _, slotID := range slots {
			sl := e.slot(slotID)
			assert.Equal(t, model.SlotAvailable, sl.Status)
			assert.Nil(t, sl.ReservationID)
		}

		require.Len(t, e.pub.released, 1)
		assert.Equal(t, string(model.ReleasePaymentFailed), e.pub.released[0].Reason)
	})

	t.Run("amount mismatch fails the attempt and releases", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents - 1,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		})
		assert.ErrorIs(t, err, booking.ErrPaymentRejected)

		assert.Equal(t, model.ReservationCancelled, e.reservation(res.ID).Status)
		assert.Equal(t, model.PaymentFailed, e.payment(p.ID).Status)
		assert.Equal(t, model.SlotAvailable, e.slot(slots[10]).Status)

		require.Len(t, e.pub.released, 1)
		assert.Equal(t, string(model.ReleaseAmountMismatch), e.pub.released[0].Reason)
	})

	t.Run("currency mismatch is treated like amount mismatch", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "EUR",
			Outcome:       booking.OutcomeSuccess,
		})
		assert.ErrorIs(t, err, booking.ErrPaymentRejected)
		assert.Equal(t, model.PaymentFailed, e.payment(p.ID).Status)
	})

	t.Run("callback for unknown reservation loses", func(t *testing.T) {
		e := newEnv(t)
		err := e.coord.HandleCallback(ctx, booking.CallbackInput{ReservationID: 999, Outcome: booking.OutcomeSuccess})
		assert.ErrorIs(t, err, repository.ErrStaleTransition)
	})

	t.Run("late success after expiry refunds the payment", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)

		e.clock.Advance(testHoldTTL + time.Second)
		require.NoError(t, e.sweeper.SweepOnce(ctx))
		require.Equal(t, model.ReservationExpired, e.reservation(res.ID).Status)

		err := e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-123",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		})
		assert.ErrorIs(t, err, booking.ErrHoldExpired)

		// The seat was reclaimed and the captured money handed back.
		assert.Equal(t, model.ReservationExpired, e.reservation(res.ID).Status)
		got := e.payment(p.ID)
		assert.Equal(t, model.PaymentCancelled, got.Status)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, string(model.ReleaseExpired), *got.CancelReason)
		assert.Equal(t, model.SlotAvailable, e.slot(slots[10]).Status)
		assert.Empty(t, e.pub.confirmed)
	})
}
