package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "hl_liq_watch"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() { p.counter.Inc() }

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) { p.gauge.Set(v) }

// Prometheus registers every gauge and counter behind a dedicated
// registry so /metrics never picks up the Go runtime collectors the
// default global registry adds.
type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	cacheSizeCritical := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "cache_size_critical", Help: "Positions currently in the critical tier.",
	})
	cacheSizeHigh := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "cache_size_high", Help: "Positions currently in the high tier.",
	})
	cacheSizeNormal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "cache_size_normal", Help: "Positions currently in the normal tier.",
	})
	walletsRegistered := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "wallets_registered", Help: "Wallets currently held in the registry.",
	})
	fetcherInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "fetcher_in_flight", Help: "Upstream fetch calls currently in flight.",
	})
	discoveryInterval := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace, Name: "discovery_interval_seconds", Help: "Current adaptive discovery loop interval.",
	})

	fullLiq := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "alerts_full_liquidation_total", Help: "Total full liquidation alerts emitted.",
	})
	partialLiq := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "alerts_partial_liquidation_total", Help: "Total partial liquidation alerts emitted.",
	})
	collateralAdded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "alerts_collateral_added_total", Help: "Total collateral-added alerts emitted.",
	})
	imminent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "alerts_imminent_total", Help: "Total imminent-liquidation alerts emitted.",
	})
	approaching := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "alerts_approaching_total", Help: "Total approaching-liquidation alerts emitted.",
	})
	persistenceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace, Name: "persistence_failures_total", Help: "Total durable-store write failures.",
	})

	registry.MustRegister(
		cacheSizeCritical, cacheSizeHigh, cacheSizeNormal, walletsRegistered, fetcherInFlight, discoveryInterval,
		fullLiq, partialLiq, collateralAdded, imminent, approaching, persistenceFailures,
	)

	m := &Metrics{
		CacheSizeCritical: promGauge{cacheSizeCritical},
		CacheSizeHigh:     promGauge{cacheSizeHigh},
		CacheSizeNormal:   promGauge{cacheSizeNormal},
		WalletsRegistered: promGauge{walletsRegistered},
		FetcherInFlight:   promGauge{fetcherInFlight},
		DiscoveryInterval: promGauge{discoveryInterval},
		Alerts: AlertCounters{
			FullLiquidation:    promCounter{fullLiq},
			PartialLiquidation: promCounter{partialLiq},
			CollateralAdded:    promCounter{collateralAdded},
			Imminent:           promCounter{imminent},
			Approaching:        promCounter{approaching},
		},
		PersistenceFailures: promCounter{persistenceFailures},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
