package ingest

import (
	"context"
	"sync"
	"time"
)

// MarkFetchFunc fetches every coin's mid price on one exchange, matching
// (*fetcher.Fetcher).GetMarkPrices.
type MarkFetchFunc func(ctx context.Context, exchange string) (map[string]float64, error)

// MarkCache holds the most recently fetched allMids snapshot per
// exchange for up to ttl, so a burst of critical-tier refreshes against
// the same exchange doesn't each pay for their own allMids round trip
// (mirrors the teacher's internal/market caching upstream reads behind
// a short TTL).
type MarkCache struct {
	ttl time.Duration

	mu   sync.Mutex
	data map[string]markEntry
}

type markEntry struct {
	mids map[string]float64
	at   time.Time
}

func NewMarkCache(ttl time.Duration) *MarkCache {
	return &MarkCache{ttl: ttl, data: make(map[string]markEntry)}
}

// Get returns the cached mids for exchange if still fresh, otherwise
// calls fetch and caches the result.
func (c *MarkCache) Get(ctx context.Context, exchange string, fetch MarkFetchFunc) (map[string]float64, error) {
	c.mu.Lock()
	entry, ok := c.data[exchange]
	c.mu.Unlock()
	if ok && time.Since(entry.at) < c.ttl {
		return entry.mids, nil
	}

	mids, err := fetch(ctx, exchange)
	if err != nil {
		if ok {
			// serve the stale snapshot rather than blocking every
			// refresh in this exchange behind a failing price fetch.
			return entry.mids, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.data[exchange] = markEntry{mids: mids, at: time.Now()}
	c.mu.Unlock()
	return mids, nil
}
