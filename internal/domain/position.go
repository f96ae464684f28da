// Package domain holds the value types shared across the fetcher,
// registry, cache, discovery, and detection packages: positions,
// wallets, tiers, and alerts.
package domain

import "time"

// Tier classifies a position by how close it is to liquidation, and
// therefore how often it needs to be refreshed.
type Tier int

const (
	TierNormal Tier = iota
	TierHigh
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	default:
		return "normal"
	}
}

// PositionKey identifies one side of one wallet's exposure on one
// token/exchange. Hyperliquid isolated-margin accounts can hold both a
// long and a short on the same token simultaneously, so Side is part of
// the key.
type PositionKey struct {
	Address  string
	Token    string
	Exchange string
	Side     string // "long" or "short"
}

// Position is a snapshot of one wallet's exposure as returned by
// clearinghouseState, already paired with a mark price.
type Position struct {
	Key PositionKey

	SizeTokens      float64
	EntryPrice      float64
	LiquidationPx   float64
	MarkPrice       float64
	PositionValueUSD float64
	MarginUsedUSD    float64
	Leverage         float64
	Isolated         bool

	DistancePct float64 // signed by side, (MarkPrice - LiquidationPx) / MarkPrice * 100 for longs; positive while solvent

	LastUpdated time.Time
}

// AlertFlags tracks which alert kinds have already fired for a position,
// so the detector can suppress repeats until a hysteresis re-arm band is
// crossed (spec.md §4.6).
type AlertFlags struct {
	ApproachingFired bool
	ImminentFired    bool
}

// CachedPosition is the cache's resident record: the latest snapshot,
// its tier, scheduling metadata, and alert-dedup state.
type CachedPosition struct {
	Position

	Tier             Tier
	NextRefreshAt    time.Time
	Flags            AlertFlags
}
