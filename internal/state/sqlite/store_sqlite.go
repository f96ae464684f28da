// Package sqlite is the sqlite-backed implementation of state.Store,
// using modernc.org/sqlite's pure-Go driver so the monitor needs no
// cgo toolchain to persist its wallet registry, position cache, and
// alert log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"hl-liq-watch/internal/domain"
)

type Store struct {
	db  *sql.DB
	log *zap.Logger

	flushInterval time.Duration
	mu            sync.Mutex
	queued        map[string]domain.CachedPosition

	stop chan struct{}
	done chan struct{}
}

func New(path string, flushInterval time.Duration, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{
		db:            db,
		log:           log,
		flushInterval: flushInterval,
		queued:        make(map[string]domain.CachedPosition),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	go s.flushLoop()
	return s, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wallet_registry (
			address TEXT PRIMARY KEY,
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			sources TEXT NOT NULL,
			cohort TEXT,
			frequency TEXT NOT NULL,
			last_scanned INTEGER,
			last_notional REAL,
			scan_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS position_cache (
			address TEXT NOT NULL,
			token TEXT NOT NULL,
			exchange TEXT NOT NULL,
			side TEXT NOT NULL,
			size_tokens REAL,
			entry_price REAL,
			liquidation_px REAL,
			mark_price REAL,
			position_value_usd REAL,
			margin_used_usd REAL,
			leverage REAL,
			isolated INTEGER,
			distance_pct REAL,
			tier TEXT,
			next_refresh_at INTEGER,
			approaching_fired INTEGER,
			imminent_fired INTEGER,
			last_updated INTEGER,
			PRIMARY KEY (address, token, exchange, side)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_log (
			dedup_key TEXT PRIMARY KEY,
			address TEXT,
			token TEXT,
			exchange TEXT,
			side TEXT,
			kind TEXT,
			message TEXT,
			fired_at INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveWallet(ctx context.Context, w domain.Wallet) error {
	sources, err := json.Marshal(sourceList(w.Sources))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallet_registry (address, first_seen, last_seen, sources, cohort, frequency, last_scanned, last_notional, scan_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			sources = excluded.sources,
			cohort = excluded.cohort,
			frequency = excluded.frequency,
			last_scanned = excluded.last_scanned,
			last_notional = excluded.last_notional,
			scan_count = excluded.scan_count
	`, w.Address, w.FirstSeen.UnixMilli(), w.LastSeen.UnixMilli(), string(sources), w.Cohort,
		frequencyString(w.Frequency), nullableMillis(w.LastScanned), w.LastNotional, w.ScanCount)
	return err
}

func (s *Store) LoadWallets(ctx context.Context) ([]domain.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, first_seen, last_seen, sources, cohort, frequency, last_scanned, last_notional, scan_count FROM wallet_registry`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Wallet
	for rows.Next() {
		var (
			address, cohort, freq, sourcesJSON string
			firstSeen, lastSeen                int64
			lastScanned                        sql.NullInt64
			lastNotional                       float64
			scanCount                          int
		)
		if err := rows.Scan(&address, &firstSeen, &lastSeen, &sourcesJSON, &cohort, &freq, &lastScanned, &lastNotional, &scanCount); err != nil {
			return nil, err
		}
		var sources []string
		if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
			return nil, err
		}
		w := domain.Wallet{
			Address:      address,
			FirstSeen:    time.UnixMilli(firstSeen),
			LastSeen:     time.UnixMilli(lastSeen),
			Sources:      sourceSet(sources),
			Cohort:       cohort,
			Frequency:    parseFrequency(freq),
			LastNotional: lastNotional,
			ScanCount:    scanCount,
		}
		if lastScanned.Valid {
			w.LastScanned = time.UnixMilli(lastScanned.Int64)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// QueuePosition enqueues cp for the next flush window, replacing any
// prior queued write for the same key (spec.md §4.7, "coalesced up to
// 1s windows").
func (s *Store) QueuePosition(cp domain.CachedPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[positionKey(cp)] = cp
}

func (s *Store) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			_ = s.FlushPositions(context.Background())
			return
		case <-ticker.C:
			if err := s.FlushPositions(context.Background()); err != nil {
				s.log.Warn("flushing position cache failed", zap.Error(err))
			}
		}
	}
}

func (s *Store) FlushPositions(ctx context.Context) error {
	s.mu.Lock()
	batch := s.queued
	s.queued = make(map[string]domain.CachedPosition)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO position_cache (
			address, token, exchange, side, size_tokens, entry_price, liquidation_px,
			mark_price, position_value_usd, margin_used_usd, leverage, isolated,
			distance_pct, tier, next_refresh_at, approaching_fired, imminent_fired, last_updated
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(address, token, exchange, side) DO UPDATE SET
			size_tokens = excluded.size_tokens,
			entry_price = excluded.entry_price,
			liquidation_px = excluded.liquidation_px,
			mark_price = excluded.mark_price,
			position_value_usd = excluded.position_value_usd,
			margin_used_usd = excluded.margin_used_usd,
			leverage = excluded.leverage,
			isolated = excluded.isolated,
			distance_pct = excluded.distance_pct,
			tier = excluded.tier,
			next_refresh_at = excluded.next_refresh_at,
			approaching_fired = excluded.approaching_fired,
			imminent_fired = excluded.imminent_fired,
			last_updated = excluded.last_updated
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, cp := range batch {
		_, err := stmt.ExecContext(ctx,
			cp.Key.Address, cp.Key.Token, cp.Key.Exchange, cp.Key.Side,
			cp.SizeTokens, cp.EntryPrice, cp.LiquidationPx, cp.MarkPrice,
			cp.PositionValueUSD, cp.MarginUsedUSD, cp.Leverage, boolToInt(cp.Isolated),
			cp.DistancePct, cp.Tier.String(), cp.NextRefreshAt.UnixMilli(),
			boolToInt(cp.Flags.ApproachingFired), boolToInt(cp.Flags.ImminentFired),
			cp.LastUpdated.UnixMilli(),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) LoadPositions(ctx context.Context) ([]domain.CachedPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, token, exchange, side, size_tokens, entry_price, liquidation_px,
		       mark_price, position_value_usd, margin_used_usd, leverage, isolated,
		       distance_pct, tier, next_refresh_at, approaching_fired, imminent_fired, last_updated
		FROM position_cache
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CachedPosition
	for rows.Next() {
		var (
			cp                         domain.CachedPosition
			tier                       string
			isolated, approaching, imm int
			nextRefresh, lastUpdated   int64
		)
		if err := rows.Scan(
			&cp.Key.Address, &cp.Key.Token, &cp.Key.Exchange, &cp.Key.Side,
			&cp.SizeTokens, &cp.EntryPrice, &cp.LiquidationPx, &cp.MarkPrice,
			&cp.PositionValueUSD, &cp.MarginUsedUSD, &cp.Leverage, &isolated,
			&cp.DistancePct, &tier, &nextRefresh, &approaching, &imm, &lastUpdated,
		); err != nil {
			return nil, err
		}
		cp.Isolated = isolated != 0
		cp.Tier = parseTier(tier)
		cp.NextRefreshAt = time.UnixMilli(nextRefresh)
		cp.Flags.ApproachingFired = approaching != 0
		cp.Flags.ImminentFired = imm != 0
		cp.LastUpdated = time.UnixMilli(lastUpdated)
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *Store) SaveAlert(ctx context.Context, a domain.Alert) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM alert_log WHERE dedup_key = ?`, a.DedupKey()).Scan(&exists)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_log (dedup_key, address, token, exchange, side, kind, message, fired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.DedupKey(), a.Key.Address, a.Key.Token, a.Key.Exchange, a.Key.Side, a.Kind.String(), a.Message, a.Timestamp.UnixMilli())
	return false, err
}

func (s *Store) ClearCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM position_cache`)
	return err
}

func (s *Store) ClearDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM position_cache`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM alert_log`)
	return err
}

func (s *Store) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

func positionKey(cp domain.CachedPosition) string {
	return cp.Key.Address + "|" + cp.Key.Token + "|" + cp.Key.Exchange + "|" + cp.Key.Side
}

func sourceList(sources map[string]struct{}) []string {
	out := make([]string, 0, len(sources))
	for s := range sources {
		out = append(out, s)
	}
	return out
}

func sourceSet(sources []string) map[string]struct{} {
	out := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		out[s] = struct{}{}
	}
	return out
}

func frequencyString(f domain.FrequencyClass) string {
	if f == domain.FrequencyInfrequent {
		return "infrequent"
	}
	return "normal"
}

func parseFrequency(s string) domain.FrequencyClass {
	if s == "infrequent" {
		return domain.FrequencyInfrequent
	}
	return domain.FrequencyNormal
}

func parseTier(s string) domain.Tier {
	switch s {
	case "critical":
		return domain.TierCritical
	case "high":
		return domain.TierHigh
	default:
		return domain.TierNormal
	}
}

func nullableMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
