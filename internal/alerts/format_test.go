package alerts

import (
	"strings"
	"testing"

	"hl-liq-watch/internal/domain"
)

func TestFormatFullLiquidationMentionsKey(t *testing.T) {
	a := domain.Alert{
		Kind: domain.AlertFullLiquidation,
		Key:  domain.PositionKey{Address: "0x1234567890abcdef1234567890abcdef12345678", Token: "BTC", Exchange: "main", Side: "long"},
	}
	msg := Format(a)
	if !strings.Contains(msg, "FULL LIQUIDATION") {
		t.Fatalf("expected message to mention full liquidation, got %q", msg)
	}
	if !strings.Contains(msg, "BTC") {
		t.Fatalf("expected message to mention token, got %q", msg)
	}
}

func TestFormatImminentIncludesDistance(t *testing.T) {
	a := domain.Alert{
		Kind:     domain.AlertImminent,
		Key:      domain.PositionKey{Address: "0xabc", Token: "ETH", Exchange: "main", Side: "short"},
		Position: domain.Position{DistancePct: 0.05, MarkPrice: 3000, LiquidationPx: 3050},
	}
	msg := Format(a)
	if !strings.Contains(msg, "0.050") {
		t.Fatalf("expected message to include distance, got %q", msg)
	}
}

func TestFormatSummaryGroupsByTier(t *testing.T) {
	positions := []domain.CachedPosition{
		{Position: domain.Position{Key: domain.PositionKey{Address: "0x1", Token: "BTC", Exchange: "main", Side: "long"}, DistancePct: 0.1}, Tier: domain.TierCritical},
		{Position: domain.Position{Key: domain.PositionKey{Address: "0x2", Token: "ETH", Exchange: "main", Side: "long"}, DistancePct: 1.0}, Tier: domain.TierNormal},
	}
	out := FormatSummary(positions)
	if !strings.Contains(out, "CRITICAL (1)") {
		t.Fatalf("expected critical group header, got %q", out)
	}
	if !strings.Contains(out, "NORMAL (1)") {
		t.Fatalf("expected normal group header, got %q", out)
	}
}

func TestShortAddrTruncatesLongAddresses(t *testing.T) {
	got := shortAddr("0x1234567890abcdef1234567890abcdef12345678")
	if !strings.HasPrefix(got, "0x1234") {
		t.Fatalf("expected prefix preserved, got %q", got)
	}
	if len(got) >= len("0x1234567890abcdef1234567890abcdef12345678") {
		t.Fatalf("expected truncated address, got %q", got)
	}
}
