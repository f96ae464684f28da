package cache

import (
	"time"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

// Classify assigns a tier to distancePct (the position's current
// percentage distance from its liquidation price) using the
// non-hysteresis thresholds (spec.md §4.3): critical at or below
// CriticalDistancePct, high at or below HighDistancePct, normal at or
// below MaxWatchPct. Positions beyond MaxWatchPct are not cache-eligible and
// the caller should evict them, and neither are positions at or past
// their liquidation price (distancePct <= 0: the quote is stale, the
// position has already liquidated and is no longer one this monitor
// can act on).
func Classify(distancePct float64, cfg config.TierConfig) (domain.Tier, bool) {
	if distancePct <= 0 || distancePct > cfg.MaxWatchPct {
		return domain.TierNormal, false
	}
	switch {
	case distancePct <= cfg.CriticalDistancePct:
		return domain.TierCritical, true
	case distancePct <= cfg.HighDistancePct:
		return domain.TierHigh, true
	default:
		return domain.TierNormal, true
	}
}

// NextTier recomputes tier purely from distancePct on every refresh
// (spec.md §3: "tier is a pure function of the current distance_pct and
// fixed thresholds"). Hysteresis applies only to the approaching/critical
// alert flags (§4.3), never to tier assignment; retaining an
// out-of-range position in the cache is a separate eviction decision
// the caller (Cache.Upsert) makes by comparing against current.
func NextTier(current domain.Tier, distancePct float64, cfg config.TierConfig) domain.Tier {
	tier, _ := Classify(distancePct, cfg)
	return tier
}

// RefreshPeriod returns how often a position in tier should be
// refetched (spec.md §4.3).
func RefreshPeriod(tier domain.Tier, cfg config.TierConfig) time.Duration {
	switch tier {
	case domain.TierCritical:
		return cfg.CriticalRefresh
	case domain.TierHigh:
		return cfg.HighRefresh
	default:
		return cfg.NormalRefresh
	}
}
