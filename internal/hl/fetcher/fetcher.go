// Package fetcher is the rate-limited gateway to Hyperliquid's REST and
// GraphQL endpoints. It bounds in-flight requests, paces requests and
// batches, and retries transient failures with jittered backoff so the
// rest of the monitor never has to think about upstream pressure.
package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/hl/rest"
	"hl-liq-watch/internal/xerrors"
)

type Fetcher struct {
	rest *rest.Client
	cfg  config.FetcherConfig
	log  *zap.Logger

	limiter *rate.Limiter

	// dexDelay tracks, per sub-exchange, when it is next safe to issue
	// a request, enforcing d_dex spacing independently of the global
	// request pacing (spec.md §4.1). BatchFetch runs up to MaxConcurrent
	// goroutines that can all target the same sub-exchange concurrently,
	// so access is guarded by dexMu.
	dexMu    sync.Mutex
	dexDelay map[string]time.Time

	inFlight int64
}

func New(restClient *rest.Client, cfg config.FetcherConfig, log *zap.Logger) *Fetcher {
	rps := float64(time.Second) / float64(cfg.RequestDelay)
	return &Fetcher{
		rest:     restClient,
		cfg:      cfg,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		dexDelay: make(map[string]time.Time),
	}
}

// Do runs fn, applying the global request pacer and retrying transient
// failures with exponential backoff and full jitter, up to
// cfg.MaxAttempts tries.
func (f *Fetcher) Do(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		delay := fullJitterBackoff(attempt, f.cfg.BackoffMin, f.cfg.BackoffMax)
		f.log.Debug("retrying after transient fetch error",
			zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// DoOnExchange is like Do but additionally enforces the per-sub-exchange
// spacing delay (d_dex), so a burst of work targeting one sub-exchange
// doesn't hammer it faster than cfg.SubExchangeGap allows.
func (f *Fetcher) DoOnExchange(ctx context.Context, exchange string, call func(ctx context.Context) error) error {
	if wait := f.dexWait(exchange); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	err := f.Do(ctx, call)
	f.dexMu.Lock()
	f.dexDelay[exchange] = time.Now().Add(f.cfg.SubExchangeGap)
	f.dexMu.Unlock()
	return err
}

func (f *Fetcher) dexWait(exchange string) time.Duration {
	f.dexMu.Lock()
	next, ok := f.dexDelay[exchange]
	f.dexMu.Unlock()
	if !ok {
		return 0
	}
	return time.Until(next)
}

// BatchFetch runs fn for every item in items, gating concurrency to at
// most cfg.MaxConcurrent (C) in-flight calls with a weighted semaphore,
// and, independently of C, pausing cfg.BatchPause once every
// cfg.BurstSize (B) completed calls (spec.md §4.1). A failure of one
// item does not cancel the others; their errors are collected by index.
func (f *Fetcher) BatchFetch(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	sem := semaphore.NewWeighted(int64(f.cfg.MaxConcurrent))
	var wg sync.WaitGroup
	var completed int64

	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			atomic.AddInt64(&f.inFlight, 1)
			defer atomic.AddInt64(&f.inFlight, -1)
			errs[i] = fn(ctx, i)
			if burst := int64(f.cfg.BurstSize); burst > 0 && atomic.AddInt64(&completed, 1)%burst == 0 {
				// holds this slot until the pause elapses, so the
				// semaphore itself throttles the next submission rather
				// than a separate timer racing the main loop.
				select {
				case <-ctx.Done():
				case <-time.After(f.cfg.BatchPause):
				}
			}
		}()
	}
	wg.Wait()
	return errs
}

// InFlight reports how many BatchFetch calls are currently in flight,
// for the in-flight-requests gauge (spec.md's domain metrics).
func (f *Fetcher) InFlight() int64 {
	return atomic.LoadInt64(&f.inFlight)
}

func isRetryable(err error) bool {
	return err != nil && errors.Is(err, xerrors.TransientUpstream)
}
