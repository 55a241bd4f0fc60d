package booking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/model"
	"github.com/movieon/reservation-core/internal/repository"
)

const (
	defaultSweepInterval = 30 * time.Second
	sweepBatchLimit      = 100
)

// Sweeper reclaims reservations whose hold TTL has lapsed. Each tick it
// releases a batch of expired PENDING reservations with reason EXPIRED
// and scans for LOCKED seat slots whose reservation back-reference is
// missing or dead. Orphans are reported as corruption and never healed
// automatically.
type Sweeper struct {
	reservations Reservations
	inventory    Inventory
	ledger       *Ledger
	clock        Clock
	interval     time.Duration
	log          *logrus.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a Sweeper. A non-positive interval falls back
// to the default of thirty seconds.
func NewSweeper(reservations Reservations, inventory Inventory, ledger *Ledger, clock Clock, interval time.Duration, log *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		reservations: reservations,
		inventory:    inventory,
		ledger:       ledger,
		clock:        clock,
		interval:     interval,
		log:          log,
	}
}

// Start launches the sweep loop in its own goroutine. It keeps running
// until Stop is called or the parent context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.log.WithField("interval", s.interval.String()).Info("expiry sweeper started")
}

// Stop halts the sweep loop and waits for the in-flight tick to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("expiry sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.WithError(err).Error("expiry sweep failed")
			}
		}
	}
}

// SweepOnce performs one reclaim pass. A reservation that another
// actor settles between the scan and the release simply loses the
// per-reservation race; that is counted, not treated as a failure.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	expired, err := s.reservations.ExpiredPending(ctx, s.clock.Now(), sweepBatchLimit)
	if err != nil {
		return err
	}
	released := 0
	for _, res := range expired {
		err := s.ledger.Release(ctx, res.ID, model.ReleaseExpired)
		if errors.Is(err, repository.ErrStaleTransition) {
			continue // settled or cancelled since the scan
		}
		if err != nil {
			s.log.WithError(err).WithField("reservation_id", res.ID).Error("failed to release expired reservation")
			continue
		}
		released++
	}
	if released > 0 {
		s.log.WithField("released", released).Info("reclaimed expired reservations")
	}
	return s.scanOrphans(ctx)
}

// scanOrphans reports LOCKED slots that no live reservation accounts
// for. These indicate a broken invariant and need manual
// reconciliation.
func (s *Sweeper) scanOrphans(ctx context.Context) error {
	orphans, err := s.inventory.OrphanedLocked(ctx, sweepBatchLimit)
	if err != nil {
		return err
	}
	for _, sl := range orphans {
		cerr := &repository.CorruptionError{SlotID: sl.ID, Detail: "LOCKED slot without live reservation"}
		s.log.WithError(cerr).WithFields(logrus.Fields{
			"slot_id":      sl.ID,
			"screening_id": sl.ScreeningID,
			"seat_id":      sl.SeatID,
		}).Error("inventory corruption detected")
	}
	return nil
}
