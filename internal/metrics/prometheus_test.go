package metrics

import (
	"testing"
)

func TestPrometheusCountersAndGauges(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.Alerts.FullLiquidation.Inc()
	prom.Metrics.Alerts.Approaching.Inc()
	prom.Metrics.PersistenceFailures.Inc()
	prom.Metrics.CacheSizeCritical.Set(3)
	prom.Metrics.WalletsRegistered.Set(42)

	families, err := prom.registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	values := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			}
			values[mf.GetName()] = v
		}
	}

	want := map[string]float64{
		"hl_liq_watch_alerts_full_liquidation_total": 1,
		"hl_liq_watch_alerts_approaching_total":      1,
		"hl_liq_watch_persistence_failures_total":    1,
		"hl_liq_watch_cache_size_critical":           3,
		"hl_liq_watch_wallets_registered":            42,
	}
	for name, expected := range want {
		if got := values[name]; got != expected {
			t.Fatalf("metric %s: expected %v, got %v", name, expected, got)
		}
	}
}
