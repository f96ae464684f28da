// Package state defines the durable persistence contract for the
// wallet registry, position cache, and alert log (spec.md §4.7). The
// sqlite subpackage is the only implementation.
package state

import (
	"context"

	"hl-liq-watch/internal/domain"
)

type Store interface {
	// SaveWallet upserts one wallet registry row synchronously.
	SaveWallet(ctx context.Context, w domain.Wallet) error
	// LoadWallets rehydrates the full registry at startup.
	LoadWallets(ctx context.Context) ([]domain.Wallet, error)

	// QueuePosition enqueues a cache write to be flushed on the next
	// coalescing window; it never blocks on disk I/O.
	QueuePosition(cp domain.CachedPosition)
	// FlushPositions forces any queued position writes to disk.
	FlushPositions(ctx context.Context) error
	// LoadPositions rehydrates the full position cache at startup.
	LoadPositions(ctx context.Context) ([]domain.CachedPosition, error)

	// SaveAlert records an emitted alert synchronously and reports
	// whether it is a duplicate of one already logged for the same
	// dedup key (position, kind, day).
	SaveAlert(ctx context.Context, a domain.Alert) (duplicate bool, err error)

	// ClearCache truncates position_cache only.
	ClearCache(ctx context.Context) error
	// ClearDB truncates position_cache and alert_log, preserving
	// wallet_registry.
	ClearDB(ctx context.Context) error

	Close() error
}
