package cache

import (
	"time"

	"hl-liq-watch/internal/domain"
)

// RefreshBatch groups due positions that share an (address, exchange)
// pair, so the scheduler issues one upstream clearinghouseState call per
// wallet per cycle instead of one per cached position (spec.md §4.4,
// "coalescing").
type RefreshBatch struct {
	Address  string
	Exchange string
	Keys     []domain.PositionKey
}

// BuildRefreshBatches groups the positions due at now into per-wallet
// batches, ordered so that a wallet holding any critical-tier position
// is scheduled before one holding only high or normal positions.
func (c *Cache) BuildRefreshBatches(now time.Time) []RefreshBatch {
	due := c.Due(now)

	type bucket struct {
		batch    RefreshBatch
		topTier  domain.Tier
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, cp := range due {
		bk := cp.Key.Address + "|" + cp.Key.Exchange
		b, ok := buckets[bk]
		if !ok {
			b = &bucket{batch: RefreshBatch{Address: cp.Key.Address, Exchange: cp.Key.Exchange}}
			buckets[bk] = b
			order = append(order, bk)
		}
		b.batch.Keys = append(b.batch.Keys, cp.Key)
		if cp.Tier > b.topTier {
			b.topTier = cp.Tier
		}
	}

	batches := make([]RefreshBatch, 0, len(order))
	for _, bk := range order {
		batches = append(batches, buckets[bk].batch)
	}
	// stable partition: critical-containing batches first, preserving
	// otherwise-discovered order within each partition.
	sorted := make([]RefreshBatch, 0, len(batches))
	for _, b := range batches {
		if buckets[b.Address+"|"+b.Exchange].topTier == domain.TierCritical {
			sorted = append(sorted, b)
		}
	}
	for _, b := range batches {
		if buckets[b.Address+"|"+b.Exchange].topTier != domain.TierCritical {
			sorted = append(sorted, b)
		}
	}
	return sorted
}
