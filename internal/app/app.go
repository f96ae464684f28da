// Package app wires every component of the monitor into one running
// service: the wallet registry and position cache rehydrated from
// disk, the rate-limited fetcher, the state-change engine, and the
// three independent long-lived loops that share it as a bounded
// resource (spec.md §5).
package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hl-liq-watch/internal/alerts"
	"hl-liq-watch/internal/cache"
	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/discovery"
	"hl-liq-watch/internal/hl/fetcher"
	"hl-liq-watch/internal/hl/rest"
	"hl-liq-watch/internal/ingest"
	"hl-liq-watch/internal/metrics"
	"hl-liq-watch/internal/monitor"
	"hl-liq-watch/internal/refresh"
	"hl-liq-watch/internal/registry"
	"hl-liq-watch/internal/state/sqlite"
	"hl-liq-watch/internal/summary"
)

// staleSnapshotAfter bounds how old a persisted position record can be
// before its tier is no longer trusted without a fresh fetch (spec.md
// §4.7).
const staleSnapshotAfter = 24 * time.Hour

// shutdownDeadline is how long Run gives the three loops to unwind and
// the store to flush once ctx is cancelled (spec.md §5).
const shutdownDeadline = 30 * time.Second

// cohortQuery mirrors the GetSizeCohort leaderboard query the discovery
// loop pages through (spec.md §4.5 step 1).
const cohortQuery = `
query GetSizeCohort($cohortId: String!, $first: Int!, $cursor: String) {
  leaderboard(id: $cohortId, first: $first, cursor: $cursor) {
    entries: traders {
      address
      cohort
      notionalUsd: longNotional
      shortNotionalUsd: shortNotional
      leverage
    }
    pageInfo {
      hasNextPage
      cursor
    }
  }
}
`

type App struct {
	cfg *config.Config
	log *zap.Logger

	store      *sqlite.Store
	liqHistory *sqlite.LiqHistoryReader

	reg   *registry.Registry
	cache *cache.Cache

	engine    *monitor.Engine
	fetcher   *fetcher.Fetcher
	discovery *discovery.Loop
	refresh   *refresh.Scheduler
	summary   *summary.Scheduler

	metrics *metrics.Prometheus
}

// New wires every component from cfg. dryRun routes alerts to stdout
// instead of Telegram regardless of cfg.Telegram.Enabled (spec.md §6).
func New(cfg *config.Config, log *zap.Logger, dryRun bool) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath, cfg.State.FlushInterval, log)
	if err != nil {
		return nil, err
	}
	liqHistory, err := sqlite.NewLiqHistoryReader(cfg.State.SQLitePath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log)
	f := fetcher.New(restClient, cfg.Fetcher, log)

	reg := registry.New(cfg.Discovery.InfrequentNotionalUSD, cfg.Discovery.InfrequentRescan)
	c := cache.New(cfg.Tiers)

	ctx := context.Background()
	if err := rehydrate(ctx, store, reg, c); err != nil {
		log.Warn("rehydrating persisted state failed, starting cold", zap.Error(err))
	}
	// wired after rehydrate so replaying already-persisted rows back
	// into the registry does not re-write them to their own source
	// table; every Upsert/MarkScanned from here on writes through.
	reg.SetStore(store, log)
	c.SetStore(store)

	prom := metrics.NewPrometheus()

	var sender alerts.Sender
	if dryRun || !cfg.Telegram.Enabled {
		sender = alerts.NewStdout()
	} else {
		sender = alerts.NewTelegram(cfg.Telegram, log)
	}

	marks := ingest.NewMarkCache(cfg.Fetcher.MarkCacheTTL)
	thresholds := cfg.Thresholds()
	engine := monitor.New(f, c, marks, store, sender, thresholds, cfg.Tiers, prom.Metrics, log)

	summaryScheduler, err := summary.New(c, sender, cfg.Summary, log)
	if err != nil {
		_ = store.Close()
		_ = liqHistory.Close()
		return nil, err
	}

	discoveryLoop := discovery.New(f, reg, c, engine, liqHistory, cfg.Discovery, cfg.Exchanges, cohortQuery, log)
	refreshScheduler := refresh.New(c, engine, f, log)

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		liqHistory: liqHistory,
		reg:        reg,
		cache:      c,
		engine:     engine,
		fetcher:    f,
		discovery:  discoveryLoop,
		refresh:    refreshScheduler,
		summary:    summaryScheduler,
		metrics:    prom,
	}, nil
}

// rehydrate loads the wallet registry and position cache from disk,
// revalidating any position snapshot older than staleSnapshotAfter
// immediately rather than trusting its persisted tier (spec.md §4.7).
func rehydrate(ctx context.Context, store *sqlite.Store, reg *registry.Registry, c *cache.Cache) error {
	wallets, err := store.LoadWallets(ctx)
	if err != nil {
		return err
	}
	for _, w := range wallets {
		reg.Upsert(ctx, w)
	}

	positions, err := store.LoadPositions(ctx)
	if err != nil {
		return err
	}
	c.LoadSnapshot(positions, time.Now(), staleSnapshotAfter)
	return nil
}

// Run starts the refresh scheduler, discovery loop, and daily summary
// scheduler concurrently and blocks until ctx is cancelled or one of
// them fails (spec.md §5). Shutdown flushes any queued position writes
// before returning.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := a.store.FlushPositions(flushCtx); err != nil {
			a.log.Warn("final position flush failed", zap.Error(err))
		}
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing store failed", zap.Error(err))
		}
		if err := a.liqHistory.Close(); err != nil {
			a.log.Warn("closing liquidation history reader failed", zap.Error(err))
		}
	}()

	a.log.Info("starting monitor",
		zap.Strings("exchanges", a.cfg.Exchanges),
		zap.Int("wallets_loaded", a.reg.Size()),
		zap.Int("positions_loaded", a.cache.Size()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.refresh.Run(gctx) })
	g.Go(func() error { return a.discovery.Run(gctx) })
	g.Go(func() error { return a.summary.Run(gctx) })
	g.Go(func() error { return a.reportLoop(gctx) })

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// reportLoop periodically snapshots the cache, registry, and fetcher
// into the Prometheus gauges, since none of those components push their
// own metrics on every mutation.
func (a *App) reportLoop(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			critical, high, normal := a.cache.CountByTier()
			a.metrics.Metrics.CacheSizeCritical.Set(float64(critical))
			a.metrics.Metrics.CacheSizeHigh.Set(float64(high))
			a.metrics.Metrics.CacheSizeNormal.Set(float64(normal))
			a.metrics.Metrics.WalletsRegistered.Set(float64(a.reg.Size()))
			a.metrics.Metrics.FetcherInFlight.Set(float64(a.fetcher.InFlight()))
			a.metrics.Metrics.DiscoveryInterval.Set(a.discovery.NextInterval().Seconds())
		}
	}
}

// Metrics exposes the Prometheus registry for cmd/monitor to mount on
// an HTTP server.
func (a *App) Metrics() *metrics.Prometheus {
	return a.metrics
}

// ClearCache truncates the persisted position cache (spec.md §6
// --clear-cache). The in-memory cache, already rehydrated by New, is
// left as it is.
func (a *App) ClearCache(ctx context.Context) error {
	return a.store.ClearCache(ctx)
}

// ClearDB truncates the persisted position cache and alert log,
// preserving the wallet registry (spec.md §6 --clear-db).
func (a *App) ClearDB(ctx context.Context) error {
	return a.store.ClearDB(ctx)
}

// Close releases the app's resources without running any loop, for use
// by cmd/monitor's --clear-cache / --clear-db paths that exit before
// calling Run.
func (a *App) Close() error {
	err := a.store.Close()
	if liqErr := a.liqHistory.Close(); err == nil {
		err = liqErr
	}
	return err
}
