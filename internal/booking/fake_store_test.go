package booking_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/queue"
	"github.com/movieon/reservation-core/internal/repository"
)

// fakeStore is an in-memory stand-in for the MySQL repositories. Every
// method takes the store lock, so each call is atomic exactly like a
// single guarded UPDATE, while sequences of calls race like concurrent
// transactions do. WithTx runs the closure directly: the hold path must
// compensate explicitly, which is precisely the protocol under test.
type fakeStore struct {
	mu           sync.Mutex
	screenings   map[uint64]*model.Screening
	slots        map[uint64]*model.ScreeningSeat
	reservations map[uint64]*model.Reservation
	payments     map[uint64]*model.Payment
	nextRes      uint64
	nextPay      uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		screenings:   make(map[uint64]*model.Screening),
		slots:        make(map[uint64]*model.ScreeningSeat),
		reservations: make(map[uint64]*model.Reservation),
		payments:     make(map[uint64]*model.Payment),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.screenings[id]
	if !ok {
		return nil, repository.ErrScreeningNotFound
	}
	cp := *sc
	return &cp, nil
}

func (f *fakeStore) SlotsBySeatIDs(ctx context.Context, screeningID uint64, seatIDs []uint64) ([]model.ScreeningSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = struct{}{}
	}
	var out []model.ScreeningSeat
	for _, sl := range f.slots {
		if sl.ScreeningID != screeningID {
			continue
		}
		if _, ok := want[sl.SeatID]; ok {
			out = append(out, *sl)
		}
	}
	return out, nil
}

func (f *fakeStore) SlotsByReservation(ctx context.Context, reservationID uint64) ([]model.ScreeningSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ScreeningSeat
	for _, sl := range f.slots {
		if sl.ReservationID != nil && *sl.ReservationID == reservationID {
			out = append(out, *sl)
		}
	}
	return out, nil
}

func (f *fakeStore) Lock(ctx context.Context, slotID, reservationID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, ok := f.slots[slotID]
	if !ok || sl.Status != model.SlotAvailable || sl.ReservationID != nil {
		return false, nil
	}
	ref := reservationID
	sl.Status = model.SlotLocked
	sl.ReservationID = &ref
	sl.Version++
	return true, nil
}

func (f *fakeStore) Unlock(ctx context.Context, slotID, reservationID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, ok := f.slots[slotID]
	if !ok || sl.Status != model.SlotLocked || sl.ReservationID == nil || *sl.ReservationID != reservationID {
		return false, nil
	}
	sl.Status = model.SlotAvailable
	sl.ReservationID = nil
	sl.Version++
	return true, nil
}

func (f *fakeStore) PromoteByReservation(ctx context.Context, reservationID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, sl := range f.slots {
		if sl.Status == model.SlotLocked && sl.ReservationID != nil && *sl.ReservationID == reservationID {
			sl.Status = model.SlotReserved
			sl.Version++
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ReleaseByReservation(ctx context.Context, reservationID uint64, from model.SeatSlotStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, sl := range f.slots {
		if sl.Status == from && sl.ReservationID != nil && *sl.ReservationID == reservationID {
			sl.Status = model.SlotAvailable
			sl.ReservationID = nil
			sl.Version++
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) OrphanedLocked(ctx context.Context, limit int) ([]model.ScreeningSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ScreeningSeat
	for _, sl := range f.slots {
		if sl.Status != model.SlotLocked || len(out) >= limit {
			continue
		}
		if sl.ReservationID == nil {
			out = append(out, *sl)
			continue
		}
		res, ok := f.reservations[*sl.ReservationID]
		if !ok || (res.Status != model.ReservationPending && res.Status != model.ReservationConfirmed) {
			out = append(out, *sl)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRes++
	res.ID = f.nextRes
	cp := *res
	f.reservations[res.ID] = &cp
	return nil
}

func (f *fakeStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (f *fakeStore) Transition(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if res.Status != from {
		return repository.ErrStaleTransition
	}
	res.Status = to
	res.Version++
	return nil
}

func (f *fakeStore) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, res := range f.reservations {
		if len(out) >= limit {
			break
		}
		if res.Status == model.ReservationPending && !res.HoldExpiresAt.After(now) {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.payments {
		if ex.ReservationID == p.ReservationID && ex.Status == model.PaymentPending {
			return repository.ErrStaleTransition
		}
	}
	f.nextPay++
	p.ID = f.nextPay
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) PendingByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ReservationID == reservationID && p.Status == model.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (f *fakeStore) SettledByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ReservationID == reservationID && p.Status == model.PaymentPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (f *fakeStore) MarkSettled(ctx context.Context, id uint64, gatewayRef string, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.Status != model.PaymentPending {
		return repository.ErrStaleTransition
	}
	p.Status = model.PaymentPaid
	p.GatewayRef = gatewayRef
	at := paidAt
	p.PaidAt = &at
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uint64, gatewayRef, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.Status != model.PaymentPending {
		return repository.ErrStaleTransition
	}
	p.Status = model.PaymentFailed
	p.GatewayRef = gatewayRef
	r, t := reason, at
	p.CancelReason = &r
	p.CancelledAt = &t
	return nil
}

func (f *fakeStore) MarkCancelled(ctx context.Context, id uint64, from model.PaymentStatus, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.Status != from {
		return repository.ErrStaleTransition
	}
	p.Status = model.PaymentCancelled
	r, t := reason, at
	p.CancelReason = &r
	p.CancelledAt = &t
	return nil
}

// reservationsView adapts fakeStore to the booking.Reservations
// interface, whose GetByID collides with the Screenings method name.
type reservationsView struct{ *fakeStore }

func (v reservationsView) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return v.GetReservation(ctx, id)
}

// paymentsView adapts fakeStore to booking.Payments (Create collides
// with the Reservations method name).
type paymentsView struct{ *fakeStore }

func (v paymentsView) Create(ctx context.Context, p *model.Payment) error {
	return v.CreatePayment(ctx, p)
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []booking.PaymentRequest
	err      error
}

func (g *fakeGateway) Submit(ctx context.Context, req booking.PaymentRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.err
}

type fakePublisher struct {
	mu        sync.Mutex
	confirmed []queue.ReservationConfirmedEvent
	released  []queue.ReservationReleasedEvent
}

func (p *fakePublisher) ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
}

func (p *fakePublisher) ReservationReleased(ctx context.Context, ev queue.ReservationReleasedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, ev)
}

// testClock is a settable clock so tests can move time past the hold
// TTL without sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// env bundles a full reservation core wired onto the fake store.
type env struct {
	store   *fakeStore
	gateway *fakeGateway
	pub     *fakePublisher
	clock   *testClock
	holds   *booking.HoldManager
	ledger  *booking.Ledger
	coord   *booking.Coordinator
	sweeper *booking.Sweeper
}

const testHoldTTL = 5 * time.Minute

func newEnv(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	gw := &fakeGateway{}
	pub := &fakePublisher{}
	clock := newTestClock(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	log := logrus.New()
	log.SetOutput(io.Discard)

	resv := reservationsView{store}
	pays := paymentsView{store}
	ledger := booking.NewLedger(store, store, resv, pays, pub, clock, log)
	return &env{
		store:   store,
		gateway: gw,
		pub:     pub,
		clock:   clock,
		holds:   booking.NewHoldManager(store, store, store, resv, clock, testHoldTTL),
		ledger:  ledger,
		coord:   booking.NewCoordinator(store, resv, pays, gw, ledger, clock, "USD", log),
		sweeper: booking.NewSweeper(resv, store, ledger, clock, time.Second, log),
	}
}

func (e *env) addScreening(id uint64, price uint32, status model.ScreeningStatus) {
	e.store.screenings[id] = &model.Screening{
		ID:           id,
		AuditoriumID: 1,
		MovieTitle:   "Arrival",
		StartsAt:     e.clock.Now().Add(2 * time.Hour),
		EndsAt:       e.clock.Now().Add(4 * time.Hour),
		PriceCents:   price,
		Status:       status,
	}
}

// addSlots creates one slot per seat id and returns seat id → slot id.
func (e *env) addSlots(screeningID uint64, seatIDs ...uint64) map[uint64]uint64 {
	out := make(map[uint64]uint64, len(seatIDs))
	for _, seatID := range seatIDs {
		slotID := screeningID*1000 + seatID
		e.store.slots[slotID] = &model.ScreeningSeat{
			ID:          slotID,
			ScreeningID: screeningID,
			SeatID:      seatID,
			Status:      model.SlotAvailable,
		}
		out[seatID] = slotID
	}
	return out
}

func (e *env) slot(id uint64) model.ScreeningSeat {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return *e.store.slots[id]
}

func (e *env) reservation(id uint64) model.Reservation {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return *e.store.reservations[id]
}

func (e *env) payment(id uint64) model.Payment {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return *e.store.payments[id]
}
