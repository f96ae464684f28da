package detect

import (
	"testing"
	"time"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

func testTierConfig() config.TierConfig {
	return config.TierConfig{
		CriticalDistancePct: 0.125,
		HighDistancePct:     0.25,
		ApproachingRearmPct: 0.30,
		CriticalRearmPct:    0.15,
	}
}

func cachedAt(size, liq, distance float64, flags domain.AlertFlags) domain.CachedPosition {
	return cachedWith(size, liq, 0, "long", distance, flags)
}

func cachedWith(size, liq, notional float64, side string, distance float64, flags domain.AlertFlags) domain.CachedPosition {
	return domain.CachedPosition{
		Position: domain.Position{
			Key:              domain.PositionKey{Side: side},
			SizeTokens:       size,
			LiquidationPx:    liq,
			PositionValueUSD: notional,
			DistancePct:      distance,
		},
		Flags: flags,
	}
}

func TestClassifyFullLiquidation(t *testing.T) {
	prev := cachedAt(1.5, 9000, 0.1, domain.AlertFlags{})
	curr := cachedAt(0, 0, 0, domain.AlertFlags{})
	kind, _ := Classify(prev, curr, testTierConfig(), time.Now())
	if kind != domain.AlertFullLiquidation {
		t.Fatalf("expected full liquidation, got %v", kind)
	}
}

func TestClassifyPartialLiquidation(t *testing.T) {
	prev := cachedWith(2.0, 9000, 10000, "long", 0.5, domain.AlertFlags{})
	curr := cachedWith(1.0, 9000, 5000, "long", 0.5, domain.AlertFlags{})
	kind, _ := Classify(prev, curr, testTierConfig(), time.Now())
	if kind != domain.AlertPartialLiquidation {
		t.Fatalf("expected partial liquidation, got %v", kind)
	}
}

func TestClassifyCollateralAdded(t *testing.T) {
	prev := cachedWith(2.0, 3480, 10000, "long", 0.2, domain.AlertFlags{})
	curr := cachedWith(2.0, 3400, 10000, "long", 0.4, domain.AlertFlags{})
	kind, _ := Classify(prev, curr, testTierConfig(), time.Now())
	if kind != domain.AlertCollateralAdded {
		t.Fatalf("expected collateral added, got %v", kind)
	}
}

func TestClassifyCollateralAddedShort(t *testing.T) {
	prev := cachedWith(-2.0, 3400, 10000, "short", 0.2, domain.AlertFlags{})
	curr := cachedWith(-2.0, 3480, 10000, "short", 0.4, domain.AlertFlags{})
	kind, _ := Classify(prev, curr, testTierConfig(), time.Now())
	if kind != domain.AlertCollateralAdded {
		t.Fatalf("expected collateral added on short side, got %v", kind)
	}
}

func TestClassifyNaturalPriceMoveIsSilent(t *testing.T) {
	// mark moved, liq and size unchanged: never an alert on its own.
	prev := cachedWith(2.0, 9000, 10000, "long", 0.6, domain.AlertFlags{})
	curr := cachedWith(2.0, 9000, 10000, "long", 0.8, domain.AlertFlags{})
	kind, _ := Classify(prev, curr, testTierConfig(), time.Now())
	if kind != domain.AlertSilentUpdate {
		t.Fatalf("expected silent update on natural price movement, got %v", kind)
	}
}

func TestClassifyImminentFiresOnceUntilRearm(t *testing.T) {
	cfg := testTierConfig()
	prev := cachedAt(1.0, 9000, 1.0, domain.AlertFlags{})
	curr := cachedAt(1.0, 9000, 0.1, domain.AlertFlags{})

	kind, flags := Classify(prev, curr, cfg, time.Now())
	if kind != domain.AlertImminent {
		t.Fatalf("expected imminent on first crossing, got %v", kind)
	}
	if !flags.ImminentFired {
		t.Fatalf("expected imminent flag set")
	}

	curr.Flags = flags
	kind, _ = Classify(curr, curr, cfg, time.Now())
	if kind != domain.AlertSilentUpdate {
		t.Fatalf("expected silent update on repeat critical distance, got %v", kind)
	}
}

func TestClassifyApproachingSuppressedAfterImminent(t *testing.T) {
	cfg := testTierConfig()
	flags := domain.AlertFlags{ApproachingFired: true, ImminentFired: true}
	prev := cachedAt(1.0, 9000, 0.1, flags)
	curr := cachedAt(1.0, 9000, 0.2, flags)
	kind, _ := Classify(prev, curr, cfg, time.Now())
	if kind != domain.AlertSilentUpdate {
		t.Fatalf("expected silent update since approaching already fired, got %v", kind)
	}
}

func TestClassifyNaturalRecoveryIsSilent(t *testing.T) {
	cfg := testTierConfig()
	prev := cachedAt(1.0, 9000, 0.2, domain.AlertFlags{ApproachingFired: true})
	curr := cachedAt(1.0, 9000, 1.0, domain.AlertFlags{ApproachingFired: true})
	kind, _ := Classify(prev, curr, cfg, time.Now())
	if kind != domain.AlertSilentUpdate {
		t.Fatalf("expected silent update on recovery, got %v", kind)
	}
}

func TestClassifyRearmAllowsApproachingAgain(t *testing.T) {
	cfg := testTierConfig()
	// simulate the cache having already cleared ApproachingFired once
	// distance exceeded the rearm band (cache.Upsert's responsibility);
	// detect only sees the flags it's handed.
	prev := cachedAt(1.0, 9000, 1.0, domain.AlertFlags{})
	curr := cachedAt(1.0, 9000, 0.2, domain.AlertFlags{})
	kind, flags := Classify(prev, curr, cfg, time.Now())
	if kind != domain.AlertApproaching {
		t.Fatalf("expected approaching to re-fire after rearm, got %v", kind)
	}
	if !flags.ApproachingFired {
		t.Fatalf("expected approaching flag set")
	}
}
