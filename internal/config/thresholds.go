package config

import "strings"

// defaultCrossThresholdUSD and defaultIsolatedThresholdUSD apply to any
// token/exchange combination not otherwise listed (spec.md §6).
const (
	defaultCrossThresholdUSD    = 300_000
	defaultIsolatedThresholdUSD = 60_000
	isolatedMultiplier          = 5.0
)

// mainExchangeCrossThresholds mirrors the token-tier table the original
// implementation classifies main-exchange tokens into (cross-margin
// notional, USD). Isolated positions use 1/isolatedMultiplier of these.
var mainExchangeCrossThresholds = map[string]float64{
	"BTC": 100_000_000,

	"ETH": 75_000_000,

	"SOL": 25_000_000,
	"BNB": 25_000_000,
	"XRP": 25_000_000,

	"DOGE": 10_000_000,
	"ADA":  10_000_000,
	"AVAX": 10_000_000,
	"LINK": 10_000_000,
	"LTC":  10_000_000,
	"DOT":  10_000_000,
	"MATIC": 10_000_000,
	"UNI":   10_000_000,
	"ATOM":  10_000_000,
	"TRX":   10_000_000,
	"SHIB":  10_000_000,
	"HYPE":  10_000_000,

	"APT":    5_000_000,
	"ARB":    5_000_000,
	"OP":     5_000_000,
	"SUI":    5_000_000,
	"TON":    5_000_000,
	"NEAR":   5_000_000,
	"SEI":    5_000_000,
	"TIA":    5_000_000,
	"INJ":    5_000_000,
	"PEPE":   5_000_000,
	"WIF":    5_000_000,
	"BONK":   5_000_000,
	"FLOKI":  5_000_000,
	"AAVE":   5_000_000,
	"MKR":    5_000_000,
	"RENDER": 5_000_000,
	"FET":    5_000_000,
	"FIL":    5_000_000,
}

const mainExchangeSmallCapThresholdUSD = 1_500_000

// xyzExchangeThresholds mirrors the xyz (equities/commodities/forex)
// sub-exchange table. xyz only supports isolated margin.
var xyzExchangeThresholds = map[string]float64{
	"XYZ100": 5_000_000,

	"AAPL":  3_000_000,
	"MSFT":  3_000_000,
	"NVDA":  3_000_000,
	"GOOGL": 3_000_000,
	"AMZN":  3_000_000,
	"META":  3_000_000,
	"TSLA":  3_000_000,

	"AMD":   2_000_000,
	"NFLX":  2_000_000,
	"COIN":  2_000_000,
	"MSTR":  2_000_000,
	"ORCL":  2_000_000,
	"TSM":   2_000_000,
	"LLY":   2_000_000,
	"COST":  2_000_000,

	"GOLD": 2_500_000,
	"CL":   2_000_000,

	"SILVER":  1_500_000,
	"COPPER":  1_000_000,
	"NATGAS":  800_000,
	"URANIUM": 500_000,
	"EUR":     1_000_000,
	"JPY":     1_000_000,
}

const xyzExchangeDefaultThresholdUSD = 1_000_000 // other stocks

// otherSubExchangeThresholdUSD applies a flat isolated-only threshold for
// the remaining HIP-3 style sub-exchanges (flx, hyna, km).
const otherSubExchangeThresholdUSD = 500_000

// NotionalThresholds resolves the minimum position notional (USD) a
// position must meet to be cache-eligible, per spec.md §6. It is loaded
// once at startup and may be overridden from config.
type NotionalThresholds struct {
	overrides map[string]float64 // "EXCHANGE:TOKEN" -> cross threshold USD
}

func newNotionalThresholds(overrides []ThresholdOverride) *NotionalThresholds {
	t := &NotionalThresholds{overrides: make(map[string]float64, len(overrides))}
	for _, o := range overrides {
		t.overrides[thresholdKey(o.Exchange, o.Token)] = o.CrossUSD
	}
	return t
}

func thresholdKey(exchange, token string) string {
	return strings.ToLower(exchange) + ":" + strings.ToUpper(token)
}

// Lookup returns the minimum notional (USD) required for a position on
// token/exchange to be monitored. Isolated-margin positions use a
// 1/isolatedMultiplier threshold relative to cross.
func (t *NotionalThresholds) Lookup(token, exchange string, isolated bool) float64 {
	cross := t.crossThreshold(token, exchange)
	if isolated {
		return cross / isolatedMultiplier
	}
	return cross
}

func (t *NotionalThresholds) crossThreshold(token, exchange string) float64 {
	token = strings.ToUpper(strings.TrimPrefix(token, exchangePrefix(exchange)))
	if v, ok := t.overrides[thresholdKey(exchange, token)]; ok {
		return v
	}

	switch strings.ToLower(exchange) {
	case "", "main":
		if v, ok := mainExchangeCrossThresholds[token]; ok {
			return v
		}
		return mainExchangeSmallCapThresholdUSD
	case "xyz":
		if v, ok := xyzExchangeThresholds[token]; ok {
			return v
		}
		return xyzExchangeDefaultThresholdUSD
	case "flx", "hyna", "km":
		return otherSubExchangeThresholdUSD
	default:
		return defaultCrossThresholdUSD
	}
}

// exchangePrefix returns the symbol prefix a sub-exchange publishes mark
// prices and position coins under (spec.md §6: "the xyz exchange prefixes
// token symbols with xyz:").
func exchangePrefix(exchange string) string {
	if strings.EqualFold(exchange, "xyz") {
		return "xyz:"
	}
	return ""
}

// StripExchangePrefix removes a sub-exchange's symbol prefix (if any) for
// threshold and mark-price lookups, while the caller retains the prefixed
// form for position keys.
func StripExchangePrefix(token, exchange string) string {
	return strings.TrimPrefix(token, exchangePrefix(exchange))
}
