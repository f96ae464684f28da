package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/cache"
	"hl-liq-watch/internal/domain"
)

type fakeCache struct {
	batches     []cache.RefreshBatch
	deadline    time.Time
	hasDeadline bool
}

func (c *fakeCache) Due(now time.Time) []domain.CachedPosition             { return nil }
func (c *fakeCache) BuildRefreshBatches(now time.Time) []cache.RefreshBatch { return c.batches }
func (c *fakeCache) NextDeadline() (time.Time, bool)                       { return c.deadline, c.hasDeadline }

type fakeApplier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *fakeApplier) FetchAndApplyWallet(ctx context.Context, address, exchange string, now time.Time) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, address+"|"+exchange)
	return 0, a.err
}

// sequentialRunner is a minimal BatchRunner that runs fn in submission
// order, standing in for the fetcher's bounded concurrency for tests
// that only care about which wallets got refetched.
type sequentialRunner struct{}

func (sequentialRunner) BatchFetch(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		errs[i] = fn(ctx, i)
	}
	return errs
}

func TestRunOnceRefetchesEveryDueBatch(t *testing.T) {
	c := &fakeCache{batches: []cache.RefreshBatch{
		{Address: "0xabc", Exchange: "main"},
		{Address: "0xdef", Exchange: "xyz"},
	}}
	applier := &fakeApplier{}
	s := New(c, applier, sequentialRunner{}, zap.NewNop())

	s.RunOnce(context.Background())

	if len(applier.calls) != 2 {
		t.Fatalf("expected 2 refetch calls, got %d: %v", len(applier.calls), applier.calls)
	}
}

func TestRunOnceIsNoopWhenNothingDue(t *testing.T) {
	c := &fakeCache{}
	applier := &fakeApplier{}
	s := New(c, applier, sequentialRunner{}, zap.NewNop())

	s.RunOnce(context.Background())

	if len(applier.calls) != 0 {
		t.Fatalf("expected no refetch calls when no batches are due, got %v", applier.calls)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c := &fakeCache{}
	applier := &fakeApplier{}
	s := New(c, applier, sequentialRunner{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err == nil {
		t.Fatalf("expected Run to return an error once ctx is cancelled")
	}
}

func TestRunWakesAtNextDeadline(t *testing.T) {
	c := &fakeCache{
		batches:     []cache.RefreshBatch{{Address: "0xabc", Exchange: "main"}},
		deadline:    time.Now().Add(10 * time.Millisecond),
		hasDeadline: true,
	}
	applier := &fakeApplier{}
	s := New(c, applier, sequentialRunner{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	deadline := time.After(150 * time.Millisecond)
	for {
		applier.mu.Lock()
		n := len(applier.calls)
		applier.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected Run to refetch the due batch before its deadline elapsed twice over")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
