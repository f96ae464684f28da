// Package discovery implements the discovery loop (spec.md §4.5): it
// walks the cohort/leaderboard GraphQL endpoint, ingests the historical
// liquidation feed, and periodically rescans every wallet due for
// revalidation — registering and pricing whatever positions those scans
// turn up through the shared state-change engine.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
	"hl-liq-watch/internal/hl/fetcher"
	"hl-liq-watch/internal/registry"
)

// TierCounter reports how many positions the cache currently holds in
// each tier, used to compute discovery pressure.
type TierCounter interface {
	CountByTier() (critical, high, normal int)
}

// WalletEngine applies one wallet/exchange fetch to the cache, matching
// (*monitor.Engine).FetchAndApplyWallet.
type WalletEngine interface {
	FetchAndApplyWallet(ctx context.Context, address, exchange string, now time.Time) (float64, error)
}

// LiquidationFeed surfaces addresses seen liquidating in Hyperliquid's
// historical record, imported out-of-process (spec.md §4.5 step 2).
// Nil is a valid Loop configuration when no feed is wired.
type LiquidationFeed interface {
	PollNew(ctx context.Context) ([]domain.LiquidationSighting, error)
}

type Loop struct {
	fetcher   *fetcher.Fetcher
	reg       *registry.Registry
	tiers     TierCounter
	engine    WalletEngine
	liqFeed   LiquidationFeed
	cfg       config.DiscoveryConfig
	exchanges []string
	log       *zap.Logger

	query string
}

func New(f *fetcher.Fetcher, reg *registry.Registry, tiers TierCounter, engine WalletEngine, liqFeed LiquidationFeed, cfg config.DiscoveryConfig, exchanges []string, query string, log *zap.Logger) *Loop {
	return &Loop{
		fetcher:   f,
		reg:       reg,
		tiers:     tiers,
		engine:    engine,
		liqFeed:   liqFeed,
		cfg:       cfg,
		exchanges: exchanges,
		query:     query,
		log:       log,
	}
}

// NextInterval computes the adaptive discovery interval, in seconds, as
// base + critical*criticalWeight + high*highWeight, clamped to
// [MinIntervalSec, MaxIntervalSec] (spec.md §4.5; two-weight pressure
// formula).
func (l *Loop) NextInterval() time.Duration {
	critical, high, _ := l.tiers.CountByTier()
	sec := l.cfg.BaseIntervalSec +
		float64(critical)*l.cfg.CriticalWeight +
		float64(high)*l.cfg.HighWeight

	if sec < l.cfg.MinIntervalSec {
		sec = l.cfg.MinIntervalSec
	}
	if sec > l.cfg.MaxIntervalSec {
		sec = l.cfg.MaxIntervalSec
	}
	return time.Duration(sec * float64(time.Second))
}

// RunOnce performs one full discovery pass: walk every configured
// cohort, ingest whatever the historical liquidation feed has produced
// since the last pass, then rescan every wallet due for revalidation.
// It returns the number of newly registered wallets across all three
// steps.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	newCount, err := l.discoverCohorts(ctx)
	if err != nil {
		return newCount, err
	}

	n, err := l.ingestLiquidationHistory(ctx)
	newCount += n
	if err != nil {
		return newCount, err
	}

	if err := l.scanDueWallets(ctx); err != nil {
		return newCount, err
	}

	l.log.Debug("discovery pass complete", zap.Int("new_wallets", newCount))
	return newCount, nil
}

// discoverCohorts walks every configured cohort leaderboard to
// completion, registering wallets whose combined long+short notional
// clears MinAggregateValueUSD (spec.md §4.5 step 1). A Loop with no
// CohortIDs configured walks a single unlabeled cohort, preserving the
// single-query behavior of a Loop built directly against one query.
func (l *Loop) discoverCohorts(ctx context.Context) (int, error) {
	cohortIDs := l.cfg.CohortIDs
	if len(cohortIDs) == 0 {
		cohortIDs = []string{""}
	}

	newCount := 0
	for _, cohortID := range cohortIDs {
		n, err := l.walkCohort(ctx, cohortID)
		newCount += n
		if err != nil {
			return newCount, err
		}
	}
	return newCount, nil
}

func (l *Loop) walkCohort(ctx context.Context, cohortID string) (int, error) {
	newCount := 0
	cursor := ""
	for {
		page, err := l.fetcher.GetCohortPage(ctx, l.query, map[string]any{
			"first":    l.cfg.PageSize,
			"cursor":   cursor,
			"cohortId": cohortID,
		})
		if err != nil {
			return newCount, err
		}

		now := time.Now()
		for _, e := range page.Entries {
			if !cohortEligible(e, l.cfg) {
				continue
			}
			isNew := l.reg.Upsert(ctx, domain.Wallet{
				Address:      e.Address,
				FirstSeen:    now,
				LastSeen:     now,
				Sources:      map[string]struct{}{"cohort": {}},
				Cohort:       cohortLabel(e, cohortID),
				LastNotional: e.NotionalUSD + e.ShortNotionalUSD,
			})
			if isNew {
				newCount++
			}
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.Cursor
	}
	return newCount, nil
}

// cohortEligible filters out cohort entries too small to bother
// watching, or with no liquidation risk at all: a trader's aggregate
// long+short notional must clear the configured floor, and a wallet
// that is both unlevered (leverage <= 1.0) and purely long (no short
// exposure) is rejected outright since it can never be liquidated
// (spec.md §4.5 step 1).
func cohortEligible(e fetcher.CohortEntry, cfg config.DiscoveryConfig) bool {
	if e.NotionalUSD+e.ShortNotionalUSD < cfg.MinAggregateValueUSD {
		return false
	}
	if e.Leverage <= 1.0 && e.ShortNotionalUSD <= 0 {
		return false
	}
	return true
}

func cohortLabel(e fetcher.CohortEntry, cohortID string) string {
	if e.Cohort != "" {
		return e.Cohort
	}
	return cohortID
}

// ingestLiquidationHistory registers every address the liquidation feed
// has surfaced since the last pass, filtering out sightings below the
// configured notional floor (spec.md §4.5 step 2). A Loop with no feed
// wired is a no-op.
func (l *Loop) ingestLiquidationHistory(ctx context.Context) (int, error) {
	if l.liqFeed == nil {
		return 0, nil
	}
	sightings, err := l.liqFeed.PollNew(ctx)
	if err != nil {
		return 0, err
	}

	newCount := 0
	now := time.Now()
	for _, s := range sightings {
		if s.NotionalUSD < l.cfg.LiqHistoryMinNotionalUSD {
			continue
		}
		isNew := l.reg.Upsert(ctx, domain.Wallet{
			Address:      s.Address,
			FirstSeen:    now,
			LastSeen:     now,
			Sources:      map[string]struct{}{"liquidation_feed": {}},
			LastNotional: s.NotionalUSD,
		})
		if isNew {
			newCount++
		}
	}
	return newCount, nil
}

// scanDueWallets refetches every wallet the registry reports as due
// (spec.md §4.2, §4.5 step 3), across every configured exchange,
// bounding concurrency the same way the tiered refresh scheduler does.
// Fetches run outside the registry's read lock: IterDue only collects
// the due set, since MarkScanned below needs the write lock, which
// cannot be taken while IterDue holds the read lock.
func (l *Loop) scanDueWallets(ctx context.Context) error {
	var due []domain.Wallet
	l.reg.IterDue(time.Now(), func(w domain.Wallet) {
		due = append(due, w)
	})
	if len(due) == 0 {
		return nil
	}

	errs := l.fetcher.BatchFetch(ctx, len(due), func(ctx context.Context, i int) error {
		w := due[i]
		var aggregate float64
		var lastErr error
		for _, exchange := range l.exchanges {
			v, err := l.engine.FetchAndApplyWallet(ctx, w.Address, exchange, time.Now())
			if err != nil {
				lastErr = err
				continue
			}
			aggregate += v
		}
		l.reg.MarkScanned(ctx, w.Address, time.Now(), aggregate)
		return lastErr
	})
	for i, err := range errs {
		if err != nil {
			l.log.Warn("wallet rescan failed", zap.String("address", due[i].Address), zap.Error(err))
		}
	}
	return nil
}

// Run repeatedly calls RunOnce, re-pacing itself with NextInterval after
// each pass, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.RunOnce(ctx); err != nil {
			l.log.Warn("discovery pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.NextInterval()):
		}
	}
}
