package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"time"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

// HoldManager acquires short-lived exclusive holds on a set of seats
// for one screening on behalf of one checkout attempt. Seat slots are
// locked in ascending seat id order so concurrent requests over
// overlapping seat sets can never deadlock, and the group lock is
// all-or-nothing: if any seat fails its compare-and-set the seats
// already locked by this call are rolled back before the hold aborts.
type HoldManager struct {
	tx           Tx
	screenings   Screenings
	inventory    Inventory
	reservations Reservations
	clock        Clock
	holdTTL      time.Duration
}

const defaultHoldTTL = 5 * time.Minute

// NewHoldManager constructs a HoldManager. A non-positive ttl falls
// back to the default of five minutes.
func NewHoldManager(tx Tx, screenings Screenings, inventory Inventory, reservations Reservations, clock Clock, ttl time.Duration) *HoldManager {
	if ttl <= 0 {
		ttl = defaultHoldTTL
	}
	return &HoldManager{
		tx:           tx,
		screenings:   screenings,
		inventory:    inventory,
		reservations: reservations,
		clock:        clock,
		holdTTL:      ttl,
	}
}

// HoldTTL reports the configured hold window.
func (m *HoldManager) HoldTTL() time.Duration { return m.holdTTL }

// HoldInput describes one hold request.
type HoldInput struct {
	ScreeningID uint64
	SeatIDs     []uint64
	UserID      uint64
}

// TryHold validates the request, locks every requested seat slot
// AVAILABLE→LOCKED in ascending seat id order and creates the pending
// reservation, all in one transaction. On success it returns the
// pending reservation carrying the hold token and expiry. On failure
// it returns *repository.SeatUnavailableError listing every seat that
// could not be locked; no partial state is observable to other actors.
func (m *HoldManager) TryHold(ctx context.Context, in HoldInput) (*model.Reservation, error) {
	seatIDs := dedupeSorted(in.SeatIDs)
	if len(seatIDs) == 0 {
		return nil, &repository.SeatUnavailableError{SeatIDs: in.SeatIDs}
	}

	var res *model.Reservation
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		sc, err := m.screenings.GetByID(ctx, in.ScreeningID)
		if err != nil {
			return err
		}
		if !sc.Bookable() {
			return ErrScreeningNotBookable
		}

		slots, err := m.inventory.SlotsBySeatIDs(ctx, in.ScreeningID, seatIDs)
		if err != nil {
			return err
		}
		if len(slots) != len(seatIDs) {
			return &repository.SeatUnavailableError{SeatIDs: missingSeats(seatIDs, slots)}
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].SeatID < slots[j].SeatID })

		token, err := holdToken(32)
		if err != nil {
			return err
		}
		res = &model.Reservation{
			UserID:           in.UserID,
			ScreeningID:      in.ScreeningID,
			Status:           model.ReservationPending,
			TotalAmountCents: sc.PriceCents * uint32(len(slots)),
			HoldToken:        token,
			HoldExpiresAt:    m.clock.Now().Add(m.holdTTL),
		}
		if err := m.reservations.Create(ctx, res); err != nil {
			return err
		}

		// Ordered acquire: ascending seat id, one CAS per slot.
		locked := make([]uint64, 0, len(slots))
		var unavailable []uint64
		for _, sl := range slots {
			ok, err := m.inventory.Lock(ctx, sl.ID, res.ID)
			if err != nil {
				return err
			}
			if !ok {
				unavailable = append(unavailable, sl.SeatID)
				continue
			}
			locked = append(locked, sl.ID)
		}
		if len(unavailable) > 0 {
			// Roll back in reverse acquisition order before aborting.
			for i := len(locked) - 1; i >= 0; i-- {
				if _, err := m.inventory.Unlock(ctx, locked[i], res.ID); err != nil {
					return err
				}
			}
			return &repository.SeatUnavailableError{SeatIDs: unavailable}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// dedupeSorted removes zero and duplicate ids and returns the rest in
// ascending order, the fixed lock-acquisition order.
func dedupeSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func missingSeats(requested []uint64, slots []model.ScreeningSeat) []uint64 {
	present := make(map[uint64]struct{}, len(slots))
	for _, sl := range slots {
		present[sl.SeatID] = struct{}{}
	}
	var missing []uint64
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// holdToken generates a random hexadecimal token of n bytes using
// crypto/rand.
func holdToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
