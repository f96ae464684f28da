// Package cache holds the in-memory position cache: the latest known
// snapshot of every monitored position, its tier, and its next
// scheduled refresh time.
package cache

import (
	"sort"
	"sync"
	"time"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

func keyString(k domain.PositionKey) string {
	return k.Address + "|" + k.Token + "|" + k.Exchange + "|" + k.Side
}

// PositionStore is the subset of state.Store the cache writes every
// applied update through to: a non-blocking enqueue onto the store's
// own coalescing window, never a direct disk write (spec.md §4.7).
type PositionStore interface {
	QueuePosition(cp domain.CachedPosition)
}

// Cache is safe for concurrent use. Reads and tier-ordered iteration
// take the read lock; Upsert and Evict take the write lock.
type Cache struct {
	mu  sync.RWMutex
	pos map[string]domain.CachedPosition

	tiers config.TierConfig
	store PositionStore
}

func New(tiers config.TierConfig) *Cache {
	return &Cache{
		pos:   make(map[string]domain.CachedPosition),
		tiers: tiers,
	}
}

// SetStore wires store as the cache's write-through persistence target.
// Left unset, Upsert only mutates the in-memory map — the state
// LoadSnapshot's initial replay at startup relies on so rehydrating
// from store does not immediately re-queue every loaded row back to it.
func (c *Cache) SetStore(store PositionStore) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

// Get returns the cached record for key, if present.
func (c *Cache) Get(key domain.PositionKey) (domain.CachedPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.pos[keyString(key)]
	return cp, ok
}

// Upsert applies a freshly fetched position snapshot. Stale snapshots
// (older than the record currently cached) are rejected so a slow,
// out-of-order fetcher response never clobbers newer data (spec.md
// §4.3, "staleness rejection"). Returns the resulting record and
// whether the write was applied.
func (c *Cache) Upsert(p domain.Position, now time.Time) (domain.CachedPosition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := keyString(p.Key)
	existing, ok := c.pos[key]
	if ok && !p.LastUpdated.IsZero() && p.LastUpdated.Before(existing.LastUpdated) {
		return existing, false
	}

	tier := NextTier(existing.Tier, p.DistancePct, c.tiers)
	if _, eligible := Classify(p.DistancePct, c.tiers); !eligible {
		// out of range (beyond max-watch, or already past liquidation on
		// a stale quote): retained only if the cached tier was already
		// higher than normal, otherwise evicted (spec.md §4.3).
		if !ok || existing.Tier == domain.TierNormal {
			delete(c.pos, key)
			return domain.CachedPosition{}, false
		}
		tier = domain.TierNormal
	}

	flags := existing.Flags
	if p.DistancePct > c.tiers.ApproachingRearmPct {
		flags.ApproachingFired = false
	}
	if p.DistancePct > c.tiers.CriticalRearmPct {
		flags.ImminentFired = false
	}

	cp := domain.CachedPosition{
		Position:      p,
		Tier:          tier,
		NextRefreshAt: now.Add(RefreshPeriod(tier, c.tiers)),
		Flags:         flags,
	}
	c.pos[key] = cp
	if c.store != nil {
		c.store.QueuePosition(cp)
	}
	return cp, true
}

// SetFlags persists the alert-dedup flags for key after the detector
// fires an alert.
func (c *Cache) SetFlags(key domain.PositionKey, flags domain.AlertFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := keyString(key)
	cp, ok := c.pos[k]
	if !ok {
		return
	}
	cp.Flags = flags
	c.pos[k] = cp
	if c.store != nil {
		c.store.QueuePosition(cp)
	}
}

// Evict removes key from the cache, e.g. once a position has fully
// liquidated or its notional has fallen beneath the monitoring
// threshold.
func (c *Cache) Evict(key domain.PositionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pos, keyString(key))
}

// Due returns every cached position whose NextRefreshAt has elapsed as
// of now, ordered by tier (critical first), then deadline, then
// ascending distance to liquidation — so within a tier and deadline,
// the position closest to liquidating is always inspected first.
func (c *Cache) Due(now time.Time) []domain.CachedPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var due []domain.CachedPosition
	for _, cp := range c.pos {
		if !cp.NextRefreshAt.After(now) {
			due = append(due, cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Tier != due[j].Tier {
			return due[i].Tier > due[j].Tier
		}
		if !due[i].NextRefreshAt.Equal(due[j].NextRefreshAt) {
			return due[i].NextRefreshAt.Before(due[j].NextRefreshAt)
		}
		return due[i].DistancePct < due[j].DistancePct
	})
	return due
}

// All returns a snapshot of every cached position, grouped implicitly by
// nothing in particular — callers that need tier grouping should sort
// the result themselves (used by the daily summary, spec.md §4.8).
func (c *Cache) All() []domain.CachedPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CachedPosition, 0, len(c.pos))
	for _, cp := range c.pos {
		out = append(out, cp)
	}
	return out
}

// KeysForWallet returns every cached position key currently held for
// address on exchange, used to detect keys a fresh wallet fetch no
// longer returns (spec.md §4.6, full-liquidation via absence).
func (c *Cache) KeysForWallet(address, exchange string) []domain.PositionKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.PositionKey
	for _, cp := range c.pos {
		if cp.Key.Address == address && cp.Key.Exchange == exchange {
			out = append(out, cp.Key)
		}
	}
	return out
}

// NextDeadline returns the earliest NextRefreshAt across the whole
// cache, so the refresh scheduler knows how long it may sleep when
// nothing is currently due (spec.md §4.4).
func (c *Cache) NextDeadline() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var earliest time.Time
	found := false
	for _, cp := range c.pos {
		if !found || cp.NextRefreshAt.Before(earliest) {
			earliest = cp.NextRefreshAt
			found = true
		}
	}
	return earliest, found
}

// LoadSnapshot restores previously persisted records into an empty
// cache at startup (spec.md §4.7). A record whose LastUpdated is older
// than staleAfter has its NextRefreshAt reset to now, since a tier
// computed from a stale snapshot can no longer be trusted until it is
// refetched; staleAfter <= 0 disables this and trusts every persisted
// deadline as-is.
func (c *Cache) LoadSnapshot(records []domain.CachedPosition, now time.Time, staleAfter time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cp := range records {
		if staleAfter > 0 && now.Sub(cp.LastUpdated) > staleAfter {
			cp.NextRefreshAt = now
		}
		c.pos[keyString(cp.Key)] = cp
	}
}

// Size returns the number of cached positions.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pos)
}

// CountByTier returns how many cached positions are currently in each
// tier, used to drive the discovery loop's adaptive interval (spec.md
// §4.5).
func (c *Cache) CountByTier() (critical, high, normal int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cp := range c.pos {
		switch cp.Tier {
		case domain.TierCritical:
			critical++
		case domain.TierHigh:
			high++
		default:
			normal++
		}
	}
	return
}
