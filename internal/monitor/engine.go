// Package monitor is the state-change detector and alerter (spec.md
// §4.6): it turns a raw wallet/exchange fetch into cache updates,
// classifies the transition against the previously cached state, and
// emits deduplicated alerts. Both the discovery loop and the tiered
// refresh scheduler drive the cache exclusively through this package so
// a position is never updated without also being run through
// detection.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/alerts"
	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/detect"
	"hl-liq-watch/internal/domain"
	"hl-liq-watch/internal/ingest"
	"hl-liq-watch/internal/metrics"
	"hl-liq-watch/internal/state"
	"hl-liq-watch/internal/xerrors"
)

// Fetcher is the subset of *fetcher.Fetcher the engine needs to pull one
// wallet's positions and one exchange's mark prices.
type Fetcher interface {
	GetPositions(ctx context.Context, address, exchange string) ([]domain.Position, error)
	GetMarkPrices(ctx context.Context, exchange string) (map[string]float64, error)
}

// Cache is the subset of *cache.Cache the engine mutates and reads.
type Cache interface {
	Get(key domain.PositionKey) (domain.CachedPosition, bool)
	Upsert(p domain.Position, now time.Time) (domain.CachedPosition, bool)
	SetFlags(key domain.PositionKey, flags domain.AlertFlags)
	Evict(key domain.PositionKey)
	KeysForWallet(address, exchange string) []domain.PositionKey
}

// Engine wires a wallet/exchange fetch through pricing, eligibility
// filtering, cache application, transition detection, and alert
// emission.
type Engine struct {
	fetcher    Fetcher
	cache      Cache
	marks      *ingest.MarkCache
	store      state.Store
	sender     alerts.Sender
	thresholds *config.NotionalThresholds
	tiers      config.TierConfig
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func New(fetcher Fetcher, c Cache, marks *ingest.MarkCache, store state.Store, sender alerts.Sender, thresholds *config.NotionalThresholds, tiers config.TierConfig, m *metrics.Metrics, log *zap.Logger) *Engine {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		fetcher:    fetcher,
		cache:      c,
		marks:      marks,
		store:      store,
		sender:     sender,
		thresholds: thresholds,
		tiers:      tiers,
		metrics:    m,
		log:        log,
	}
}

// FetchAndApplyWallet fetches address's open positions on exchange plus
// that exchange's current mark prices, applies the result to the cache,
// and returns the wallet's aggregate position notional on this exchange
// (used by the discovery loop's mark_scanned bookkeeping, spec.md §4.2).
func (e *Engine) FetchAndApplyWallet(ctx context.Context, address, exchange string, now time.Time) (float64, error) {
	mids, err := e.marks.Get(ctx, exchange, e.fetcher.GetMarkPrices)
	if err != nil {
		return 0, err
	}
	positions, err := e.fetcher.GetPositions(ctx, address, exchange)
	if err != nil {
		return 0, err
	}
	return e.ApplyWalletFetch(ctx, address, exchange, positions, mids, now)
}

// ApplyWalletFetch prices every returned position, observes it, and
// then treats any cached key for (address, exchange) absent from the
// raw response as a full liquidation (spec.md §4.6). raw is the
// unpriced fetch result so a pricing gap never masquerades as an
// absence.
func (e *Engine) ApplyWalletFetch(ctx context.Context, address, exchange string, raw []domain.Position, mids map[string]float64, now time.Time) (float64, error) {
	returned := make(map[domain.PositionKey]struct{}, len(raw))
	for _, p := range raw {
		returned[p.Key] = struct{}{}
	}

	var aggregate float64
	for _, p := range ingest.Price(raw, mids) {
		aggregate += p.PositionValueUSD
		p.LastUpdated = now
		if err := e.Observe(ctx, p, now); err != nil {
			e.log.Warn("observation failed", zap.String("address", address), zap.String("token", p.Key.Token), zap.Error(err))
		}
	}

	for _, key := range e.cache.KeysForWallet(address, exchange) {
		if _, ok := returned[key]; ok {
			continue
		}
		if err := e.ObserveAbsent(ctx, key, now); err != nil {
			e.log.Warn("absence handling failed", zap.String("address", address), zap.String("token", key.Token), zap.Error(err))
		}
	}
	return aggregate, nil
}

// Observe applies one freshly priced position to the cache: ineligible
// positions are evicted silently (spec.md §3, lifecycle (b)/(c)),
// stale snapshots are dropped, and otherwise the transition is
// classified and any resulting alert is emitted.
func (e *Engine) Observe(ctx context.Context, p domain.Position, now time.Time) error {
	prev, existed := e.cache.Get(p.Key)

	if !ingest.Eligible(p, e.thresholds) {
		if existed {
			e.cache.Evict(p.Key)
		}
		return nil
	}

	cp, applied := e.cache.Upsert(p, now)
	if !applied {
		return nil
	}

	kind, flags := detect.Classify(prev, cp, e.tiers, now)
	e.cache.SetFlags(p.Key, flags)
	if kind == domain.AlertNone || kind == domain.AlertSilentUpdate {
		return nil
	}
	return e.emit(ctx, kind, p.Key, prev.Position, cp.Position, now)
}

// ObserveAbsent handles a cache key a wallet fetch no longer returned:
// a full liquidation if it was cached, a no-op otherwise (spec.md §4.6).
func (e *Engine) ObserveAbsent(ctx context.Context, key domain.PositionKey, now time.Time) error {
	prev, existed := e.cache.Get(key)
	if !existed {
		return nil
	}
	e.cache.Evict(key)
	return e.emit(ctx, domain.AlertFullLiquidation, key, prev.Position, domain.Position{Key: key, LastUpdated: now}, now)
}

func (e *Engine) emit(ctx context.Context, kind domain.AlertKind, key domain.PositionKey, prev, curr domain.Position, now time.Time) error {
	a := domain.Alert{Kind: kind, Key: key, Position: curr, Previous: prev, Timestamp: now}
	a.Message = alerts.Format(a)

	dup, err := e.store.SaveAlert(ctx, a)
	if err != nil {
		e.metrics.PersistenceFailures.Inc()
		return xerrors.Persistence(err)
	}
	if dup {
		return nil
	}
	if c := e.metrics.Alerts.ForKind(kind); c != nil {
		c.Inc()
	}
	if err := e.sender.Send(ctx, a.Message); err != nil {
		e.log.Warn("alert send failed", zap.String("kind", kind.String()), zap.String("address", key.Address), zap.Error(err))
	}
	return nil
}
