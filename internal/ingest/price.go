// Package ingest turns a raw fetched position into one that is eligible
// for cache observation: it prices the position against the current
// mark, computes distance to liquidation, and applies the notional
// threshold and liquidation-price-present filters from spec.md §3, §6.
package ingest

import (
	"strings"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

// DistancePct computes the signed percentage distance from mark to
// liquidation price for side (spec.md §4.3): positive while solvent.
func DistancePct(side string, mark, liq float64) float64 {
	if mark == 0 {
		return 0
	}
	if strings.EqualFold(side, "short") {
		return (liq - mark) / mark * 100
	}
	return (mark - liq) / mark * 100
}

// markPrice resolves p's current mark from mids, an exchange-scoped
// symbol->price table from GetMarkPrices. Sub-exchanges publish prices
// under their prefixed symbol (e.g. "xyz:SOL"), so the token as carried
// on the position key is tried first; the bare, prefix-stripped form is
// the fallback for the rare case a sub-exchange's allMids response is
// keyed unprefixed (spec.md §6, original_source/src/monitor/cache.py's
// update_prices).
func markPrice(token, exchange string, mids map[string]float64) (float64, bool) {
	if v, ok := mids[token]; ok {
		return v, true
	}
	bare := config.StripExchangePrefix(token, exchange)
	if v, ok := mids[bare]; ok {
		return v, true
	}
	return 0, false
}

// Price fills MarkPrice and DistancePct on every position it can find a
// mark for in mids, dropping the rest (a coin absent from allMids this
// cycle is skipped rather than treated as liquidated — that
// determination is left to the absence check against the raw fetch
// response, not against pricing gaps).
func Price(positions []domain.Position, mids map[string]float64) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		mark, ok := markPrice(p.Key.Token, p.Key.Exchange, mids)
		if !ok {
			continue
		}
		p.MarkPrice = mark
		if p.LiquidationPx > 0 {
			p.DistancePct = DistancePct(p.Key.Side, mark, p.LiquidationPx)
		}
		out = append(out, p)
	}
	return out
}

// Eligible reports whether p should be inserted into or retained in the
// cache: it must carry a liquidation price and clear the notional
// threshold for its token/exchange/margin type (spec.md §3, §6).
func Eligible(p domain.Position, thresholds *config.NotionalThresholds) bool {
	if p.LiquidationPx <= 0 {
		return false
	}
	threshold := thresholds.Lookup(p.Key.Token, p.Key.Exchange, p.Isolated)
	return p.PositionValueUSD >= threshold
}
