package alerts

import (
	"fmt"
	"sort"
	"strings"

	"hl-liq-watch/internal/domain"
)

// Format renders a.Message-ready text for delivery. It does not mutate
// a.
func Format(a domain.Alert) string {
	switch a.Kind {
	case domain.AlertFullLiquidation:
		return fmt.Sprintf("🔴 FULL LIQUIDATION: %s %s %s on %s (was %.4f tokens, entry %.2f)",
			shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange),
			a.Previous.SizeTokens, a.Previous.EntryPrice)
	case domain.AlertPartialLiquidation:
		return fmt.Sprintf("🟠 PARTIAL LIQUIDATION: %s %s %s on %s (%.4f → %.4f tokens)",
			shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange),
			a.Previous.SizeTokens, a.Position.SizeTokens)
	case domain.AlertCollateralAdded:
		return fmt.Sprintf("🟢 COLLATERAL ADDED: %s %s %s on %s (margin %.2f → %.2f USD)",
			shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange),
			a.Previous.MarginUsedUSD, a.Position.MarginUsedUSD)
	case domain.AlertImminent:
		return fmt.Sprintf("🚨 IMMINENT LIQUIDATION: %s %s %s on %s — %.3f%% from liquidation (mark %.2f, liq %.2f)",
			shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange),
			a.Position.DistancePct, a.Position.MarkPrice, a.Position.LiquidationPx)
	case domain.AlertApproaching:
		return fmt.Sprintf("⚠️ APPROACHING LIQUIDATION: %s %s %s on %s — %.3f%% from liquidation (mark %.2f, liq %.2f)",
			shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange),
			a.Position.DistancePct, a.Position.MarkPrice, a.Position.LiquidationPx)
	default:
		return fmt.Sprintf("position update: %s %s %s on %s", shortAddr(a.Key.Address), a.Key.Side, a.Key.Token, exchangeLabel(a.Key.Exchange))
	}
}

// FormatSummary renders the daily tier-grouped summary (spec.md §4.8).
func FormatSummary(positions []domain.CachedPosition) string {
	byTier := map[domain.Tier][]domain.CachedPosition{}
	for _, p := range positions {
		byTier[p.Tier] = append(byTier[p.Tier], p)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Daily summary — %d positions monitored\n", len(positions)))
	for _, tier := range []domain.Tier{domain.TierCritical, domain.TierHigh, domain.TierNormal} {
		group := byTier[tier]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].DistancePct < group[j].DistancePct })
		b.WriteString(fmt.Sprintf("\n%s (%d):\n", strings.ToUpper(tier.String()), len(group)))
		for _, p := range group {
			b.WriteString(fmt.Sprintf("  %s %s %s on %s — %.3f%% from liquidation\n",
				shortAddr(p.Key.Address), p.Key.Side, p.Key.Token, exchangeLabel(p.Key.Exchange), p.DistancePct))
		}
	}
	return b.String()
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func exchangeLabel(exchange string) string {
	if exchange == "" {
		return "main"
	}
	return exchange
}
