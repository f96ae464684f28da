// Package refresh implements the tiered refresh scheduler (spec.md
// §4.4): it wakes whenever a cached position falls due, coalesces due
// positions into per-wallet batches, and drives them back through the
// state-change detector via monitor.Engine.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/cache"
	"hl-liq-watch/internal/domain"
)

// Cache is the subset of *cache.Cache the scheduler needs to find due
// work and to know how long it may sleep when nothing is due.
type Cache interface {
	Due(now time.Time) []domain.CachedPosition
	BuildRefreshBatches(now time.Time) []cache.RefreshBatch
	NextDeadline() (time.Time, bool)
}

// Applier applies one wallet/exchange fetch to the cache, matching
// (*monitor.Engine).FetchAndApplyWallet.
type Applier interface {
	FetchAndApplyWallet(ctx context.Context, address, exchange string, now time.Time) (float64, error)
}

// BatchRunner bounds the concurrency of a set of per-wallet fetches,
// matching (*fetcher.Fetcher).BatchFetch.
type BatchRunner interface {
	BatchFetch(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error
}

// idleWait is how long the scheduler sleeps when the cache is empty and
// there is nothing to wait a deadline for.
const idleWait = 5 * time.Second

type Scheduler struct {
	cache   Cache
	applier Applier
	batches BatchRunner
	log     *zap.Logger
}

func New(c Cache, applier Applier, batches BatchRunner, log *zap.Logger) *Scheduler {
	return &Scheduler{cache: c, applier: applier, batches: batches, log: log}
}

// RunOnce refetches every wallet/exchange pair with at least one due
// position, bounding in-flight requests via the shared fetcher.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := time.Now()
	batches := s.cache.BuildRefreshBatches(now)
	if len(batches) == 0 {
		return
	}

	errs := s.batches.BatchFetch(ctx, len(batches), func(ctx context.Context, i int) error {
		b := batches[i]
		_, err := s.applier.FetchAndApplyWallet(ctx, b.Address, b.Exchange, time.Now())
		return err
	})
	for i, err := range errs {
		if err != nil {
			s.log.Warn("refresh batch failed",
				zap.String("address", batches[i].Address),
				zap.String("exchange", batches[i].Exchange),
				zap.Int("positions", len(batches[i].Keys)),
				zap.Error(err))
		}
	}
}

// Run blocks, calling RunOnce whenever the earliest cached deadline
// elapses, until ctx is cancelled. Sleeping until the next deadline
// (rather than polling) keeps a mostly-idle cache from burning CPU
// while still reacting immediately once a critical-tier position falls
// due.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait := idleWait
		if deadline, ok := s.cache.NextDeadline(); ok {
			if d := time.Until(deadline); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		s.RunOnce(ctx)
	}
}
