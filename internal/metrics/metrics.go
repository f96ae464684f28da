package metrics

import "hl-liq-watch/internal/domain"

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

// AlertCounters tallies emitted alerts by kind, so a dashboard can tell
// a flood of collateral top-ups apart from a run of liquidations.
type AlertCounters struct {
	FullLiquidation    Counter
	PartialLiquidation Counter
	CollateralAdded    Counter
	Imminent           Counter
	Approaching        Counter
}

// ForKind returns the counter for kind, or nil for kinds that are never
// emitted (AlertNone, AlertSilentUpdate).
func (a AlertCounters) ForKind(kind domain.AlertKind) Counter {
	switch kind {
	case domain.AlertFullLiquidation:
		return a.FullLiquidation
	case domain.AlertPartialLiquidation:
		return a.PartialLiquidation
	case domain.AlertCollateralAdded:
		return a.CollateralAdded
	case domain.AlertImminent:
		return a.Imminent
	case domain.AlertApproaching:
		return a.Approaching
	default:
		return nil
	}
}

type Metrics struct {
	CacheSizeCritical Gauge
	CacheSizeHigh     Gauge
	CacheSizeNormal   Gauge
	WalletsRegistered Gauge
	FetcherInFlight   Gauge
	DiscoveryInterval Gauge

	Alerts              AlertCounters
	PersistenceFailures Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		CacheSizeCritical: g,
		CacheSizeHigh:     g,
		CacheSizeNormal:   g,
		WalletsRegistered: g,
		FetcherInFlight:   g,
		DiscoveryInterval: g,
		Alerts: AlertCounters{
			FullLiquidation:    c,
			PartialLiquidation: c,
			CollateralAdded:    c,
			Imminent:           c,
			Approaching:        c,
		},
		PersistenceFailures: c,
	}
}
