// Package detect classifies the transition between a position's
// previous and current snapshot into the alert taxonomy, applying the
// priority order and hysteresis rules from spec.md §4.6.
package detect

import (
	"time"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

// Classify compares prev and curr for the same position and returns the
// highest-priority AlertKind that applies, or AlertSilentUpdate if
// nothing changed meaningfully. The returned flags are curr.Flags (the
// position's alert-dedup state) updated for any alert that fired;
// callers persist them via Cache.SetFlags regardless of which kind fired.
func Classify(prev, curr domain.CachedPosition, cfg config.TierConfig, now time.Time) (domain.AlertKind, domain.AlertFlags) {
	flags := curr.Flags

	if prev.SizeTokens != 0 && curr.SizeTokens == 0 {
		return domain.AlertFullLiquidation, flags
	}

	if partialLiquidation(prev, curr) {
		return domain.AlertPartialLiquidation, flags
	}

	if collateralAdded(prev, curr) {
		return domain.AlertCollateralAdded, flags
	}

	if curr.DistancePct <= cfg.CriticalDistancePct && !flags.ImminentFired {
		flags.ImminentFired = true
		flags.ApproachingFired = true
		return domain.AlertImminent, flags
	}

	if curr.DistancePct <= cfg.HighDistancePct && !flags.ApproachingFired {
		flags.ApproachingFired = true
		return domain.AlertApproaching, flags
	}

	return domain.AlertSilentUpdate, flags
}

// partialLiquidation reports whether the exchange forcibly trimmed the
// position: notional dropped by at least 10% and size shrank, for the
// same side (spec.md §4.6). Classify always compares two snapshots of
// the same PositionKey, so side is already held constant.
func partialLiquidation(prev, curr domain.CachedPosition) bool {
	if prev.SizeTokens == 0 || curr.SizeTokens == 0 || prev.PositionValueUSD == 0 {
		return false
	}
	notionalDropped := curr.PositionValueUSD < 0.9*prev.PositionValueUSD
	sizeShrank := absFloat(curr.SizeTokens) < absFloat(prev.SizeTokens)
	return notionalDropped && sizeShrank
}

// collateralAdded reports whether the liquidation price moved to the
// safer side by at least 0.5% while size held steady, i.e. the trader
// topped up margin rather than the market simply drifting (spec.md
// §4.6). direction_safer is lower liq for longs, higher liq for shorts.
func collateralAdded(prev, curr domain.CachedPosition) bool {
	if prev.LiquidationPx == 0 || prev.SizeTokens == 0 {
		return false
	}
	sameSize := absFloat(curr.SizeTokens-prev.SizeTokens) < 1e-9
	if !sameSize {
		return false
	}
	delta := curr.LiquidationPx - prev.LiquidationPx
	moved := absFloat(delta) / prev.LiquidationPx
	if moved < 0.005 {
		return false
	}
	isLong := curr.Key.Side == "long"
	safer := delta < 0
	if !isLong {
		safer = delta > 0
	}
	return safer
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
