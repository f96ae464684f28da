package ingest

import (
	"testing"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

func TestMarkPricePrefersPrefixedKeyOverBareFallback(t *testing.T) {
	mids := map[string]float64{
		"xyz:SOL": 101.5,
		"SOL":     100.0,
	}
	mark, ok := markPrice("xyz:SOL", "xyz", mids)
	if !ok {
		t.Fatalf("expected mark price to resolve")
	}
	if mark != 101.5 {
		t.Fatalf("expected the prefixed key to win over the bare fallback, got %v", mark)
	}
}

func TestMarkPriceFallsBackToBareKey(t *testing.T) {
	mids := map[string]float64{
		"SOL": 100.0,
	}
	mark, ok := markPrice("xyz:SOL", "xyz", mids)
	if !ok {
		t.Fatalf("expected mark price to resolve via bare fallback")
	}
	if mark != 100.0 {
		t.Fatalf("expected bare fallback price, got %v", mark)
	}
}

func TestMarkPriceMissingReturnsFalse(t *testing.T) {
	if _, ok := markPrice("xyz:SOL", "xyz", map[string]float64{}); ok {
		t.Fatalf("expected missing mark to report not ok")
	}
}

func TestPriceDropsPositionsWithoutAMark(t *testing.T) {
	positions := []domain.Position{
		{Key: domain.PositionKey{Token: "BTC", Exchange: "main", Side: "long"}, LiquidationPx: 50000},
		{Key: domain.PositionKey{Token: "NOPE", Exchange: "main", Side: "long"}, LiquidationPx: 1},
	}
	mids := map[string]float64{"BTC": 60000}

	out := Price(positions, mids)
	if len(out) != 1 {
		t.Fatalf("expected 1 priced position, got %d", len(out))
	}
	if out[0].Key.Token != "BTC" {
		t.Fatalf("expected BTC position retained, got %q", out[0].Key.Token)
	}
	if out[0].MarkPrice != 60000 {
		t.Fatalf("expected mark price set, got %v", out[0].MarkPrice)
	}
}

func TestEligibleRequiresLiquidationPriceAndNotionalFloor(t *testing.T) {
	cfg := &config.Config{ThresholdOverrides: []config.ThresholdOverride{
		{Token: "BTC", Exchange: "main", CrossUSD: 10_000},
	}}
	thresholds := cfg.Thresholds()

	p := domain.Position{Key: domain.PositionKey{Token: "BTC", Exchange: "main"}, LiquidationPx: 50000, PositionValueUSD: 20_000}
	if !Eligible(p, thresholds) {
		t.Fatalf("expected position above floor with a liquidation price to be eligible")
	}

	noLiq := p
	noLiq.LiquidationPx = 0
	if Eligible(noLiq, thresholds) {
		t.Fatalf("expected position without a liquidation price to be ineligible")
	}

	belowFloor := p
	belowFloor.PositionValueUSD = 1_000
	if Eligible(belowFloor, thresholds) {
		t.Fatalf("expected position below notional floor to be ineligible")
	}
}
