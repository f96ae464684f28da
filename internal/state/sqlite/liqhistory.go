package sqlite

import (
	"context"
	"database/sql"
	"time"

	"hl-liq-watch/internal/domain"
)

// liquidation_history records every sighting the discovery loop's
// historical liquidation feed reader has already ingested, keyed by
// its own monotonic import id so PollNew can resume from where it left
// off across restarts without re-alerting on rows it already returned.
const liqHistorySchema = `CREATE TABLE IF NOT EXISTS liquidation_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL,
	notional_usd REAL NOT NULL,
	imported_at INTEGER NOT NULL
)`

// LiqHistoryReader tails the liquidation_history table for rows the
// discovery loop has not yet consumed (spec.md §4.5 step 2). It shares
// the Store's underlying database so the historical-liquidation import
// tool and the monitor process can both write/read it concurrently.
type LiqHistoryReader struct {
	db     *sql.DB
	lastID int64
}

// NewLiqHistoryReader opens a reader against the same sqlite file as
// path, starting from the most recently imported row so a restart does
// not replay history the monitor already registered.
func NewLiqHistoryReader(path string) (*LiqHistoryReader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(liqHistorySchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &LiqHistoryReader{db: db}
	if err := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM liquidation_history`).Scan(&r.lastID); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// PollNew returns every liquidation_history row imported since the last
// call, ordered by id.
func (r *LiqHistoryReader) PollNew(ctx context.Context) ([]domain.LiquidationSighting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, notional_usd, imported_at FROM liquidation_history
		WHERE id > ? ORDER BY id ASC
	`, r.lastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LiquidationSighting
	var maxID int64 = r.lastID
	for rows.Next() {
		var (
			id         int64
			address    string
			notional   float64
			importedAt int64
		)
		if err := rows.Scan(&id, &address, &notional, &importedAt); err != nil {
			return nil, err
		}
		out = append(out, domain.LiquidationSighting{
			Address:     address,
			NotionalUSD: notional,
			ImportedAt:  time.UnixMilli(importedAt),
		})
		if id > maxID {
			maxID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.lastID = maxID
	return out, nil
}

func (r *LiqHistoryReader) Close() error {
	return r.db.Close()
}
