package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/model"
)

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("reclaims expired pending holds", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10, 11)
		res, p := holdAndBegin(t, e, 10, 11)

		// Before the TTL nothing happens.
		require.NoError(t, e.sweeper.SweepOnce(ctx))
		assert.Equal(t, model.ReservationPending, e.reservation(res.ID).Status)

		e.clock.Advance(testHoldTTL + time.Second)
		require.NoError(t, e.sweeper.SweepOnce(ctx))

		assert.Equal(t, model.ReservationExpired, e.reservation(res.ID).Status)
		for _, slotID := range slots {
			sl := e.slot(slotID)
			assert.Equal(t, model.SlotAvailable, sl.Status)
			assert.Nil(t, sl.ReservationID)
		}
		// The attempt stays open for the gateway's eventual callback.
		assert.Equal(t, model.PaymentPending, e.payment(p.ID).Status)

		require.Len(t, e.pub.released, 1)
		assert.Equal(t, string(model.ReleaseExpired), e.pub.released[0].Reason)
	})

	t.Run("leaves live holds alone", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, _ := holdAndBegin(t, e, 10)

		e.clock.Advance(testHoldTTL - time.Second)
		require.NoError(t, e.sweeper.SweepOnce(ctx))

		assert.Equal(t, model.ReservationPending, e.reservation(res.ID).Status)
		assert.Equal(t, model.SlotLocked, e.slot(slots[10]).Status)
	})

	t.Run("confirmed reservations are never reclaimed", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)
		res, p := holdAndBegin(t, e, 10)
		require.NoError(t, e.coord.HandleCallback(ctx, booking.CallbackInput{
			ReservationID: res.ID,
			GatewayRef:    "gw-1",
			AmountCents:   p.AmountCents,
			Currency:      "USD",
			Outcome:       booking.OutcomeSuccess,
		}))

		e.clock.Advance(testHoldTTL * 2)
		require.NoError(t, e.sweeper.SweepOnce(ctx))

		assert.Equal(t, model.ReservationConfirmed, e.reservation(res.ID).Status)
		assert.Equal(t, model.SlotReserved, e.slot(slots[10]).Status)
		assert.Empty(t, e.pub.released)
	})

	t.Run("reclaimed seats can be held by another customer", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10, 11)
		first, _ := holdAndBegin(t, e, 10, 11)

		// A rival cannot take the seats while the hold is live.
		_, err := e.holds.TryHold(ctx, booking.HoldInput{ScreeningID: 1, SeatIDs: []uint64{10, 11}, UserID: 8})
		require.Error(t, err)

		e.clock.Advance(testHoldTTL + time.Second)
		require.NoError(t, e.sweeper.SweepOnce(ctx))

		second, err := e.holds.TryHold(ctx, booking.HoldInput{ScreeningID: 1, SeatIDs: []uint64{10, 11}, UserID: 8})
		require.NoError(t, err)

		assert.Equal(t, model.ReservationExpired, e.reservation(first.ID).Status)
		assert.Equal(t, model.ReservationPending, e.reservation(second.ID).Status)
		for _, slotID := range slots {
			sl := e.slot(slotID)
			assert.Equal(t, model.SlotLocked, sl.Status)
			require.NotNil(t, sl.ReservationID)
			assert.Equal(t, second.ID, *sl.ReservationID)
		}
	})

	t.Run("reports orphaned locked slots without healing them", func(t *testing.T) {
		e := newEnv(t)
		e.addScreening(1, 2000, model.ScreeningAvailable)
		slots := e.addSlots(1, 10)

		// Corrupt a slot by hand: LOCKED with a dead back-reference.
		dead := uint64(424242)
		e.store.mu.Lock()
		e.store.slots[slots[10]].Status = model.SlotLocked
		e.store.slots[slots[10]].ReservationID = &dead
		e.store.mu.Unlock()

		require.NoError(t, e.sweeper.SweepOnce(ctx))

		sl := e.slot(slots[10])
		assert.Equal(t, model.SlotLocked, sl.Status, "sweeper must not heal corrupted slots")
		require.NotNil(t, sl.ReservationID)
		assert.Equal(t, dead, *sl.ReservationID)
	})
}

func TestSweeperStartStop(t *testing.T) {
	e := newEnv(t)
	e.addScreening(1, 2000, model.ScreeningAvailable)
	slots := e.addSlots(1, 10)
	res, _ := holdAndBegin(t, e, 10)
	e.clock.Advance(testHoldTTL + time.Second)

	e.sweeper.Start(context.Background())
	defer e.sweeper.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e.reservation(res.ID).Status == model.ReservationExpired {
			assert.Equal(t, model.SlotAvailable, e.slot(slots[10]).Status)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("sweeper never reclaimed the expired hold")
}
