// Package registry implements the append-only wallet registry: the set
// of addresses the monitor has ever discovered, merged across
// discovery sources, and scheduled for periodic revalidation.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/address"
	"hl-liq-watch/internal/domain"
)

// WalletStore is the subset of state.Store the registry writes every
// upsert and scan-completion through to, synchronously, outside the
// registry's lock (spec.md §4.2, §4.7, §5).
type WalletStore interface {
	SaveWallet(ctx context.Context, w domain.Wallet) error
}

// Registry is safe for concurrent use. It never removes a wallet once
// added — discovery can only grow the set (spec.md §4.2).
type Registry struct {
	mu      sync.RWMutex
	wallets map[string]domain.Wallet

	infrequentNotionalUSD float64
	infrequentRescan      time.Duration

	store WalletStore
	log   *zap.Logger
}

func New(infrequentNotionalUSD float64, infrequentRescan time.Duration) *Registry {
	return &Registry{
		wallets:               make(map[string]domain.Wallet),
		infrequentNotionalUSD: infrequentNotionalUSD,
		infrequentRescan:      infrequentRescan,
		log:                   zap.NewNop(),
	}
}

// SetStore wires store as the registry's write-through persistence
// target. Left unset, Upsert and MarkScanned only mutate the in-memory
// map — the state used by rehydrate's initial replay of rows already
// loaded from store, so that replay does not turn into a redundant
// round trip back to its own source table.
func (r *Registry) SetStore(store WalletStore, log *zap.Logger) {
	r.mu.Lock()
	r.store = store
	r.log = log
	r.mu.Unlock()
}

// Upsert merges sighting into the registry, applying the earliest-wins /
// union-sources / non-null-cohort merge rule, then writes the resulting
// row through to the durable store. Returns true if this address is new
// to the registry.
func (r *Registry) Upsert(ctx context.Context, sighting domain.Wallet) bool {
	if normalized, err := address.Normalize(sighting.Address); err == nil {
		// canonicalizes checksum casing so the same wallet discovered in
		// different casing from different feeds collapses to one entry.
		sighting.Address = normalized
	}

	r.mu.Lock()
	existing, ok := r.wallets[sighting.Address]
	var merged domain.Wallet
	if !ok {
		if sighting.Sources == nil {
			sighting.Sources = make(map[string]struct{})
		}
		sighting.Frequency = r.classify(sighting.LastNotional)
		merged = sighting
	} else {
		merged = existing.Merge(sighting)
		merged.Frequency = r.classify(maxFloat(existing.LastNotional, sighting.LastNotional))
	}
	r.wallets[merged.Address] = merged
	store, log := r.store, r.log
	r.mu.Unlock()

	r.persist(ctx, store, log, merged)
	return !ok
}

func (r *Registry) classify(notionalUSD float64) domain.FrequencyClass {
	if notionalUSD > 0 && notionalUSD < r.infrequentNotionalUSD {
		return domain.FrequencyInfrequent
	}
	return domain.FrequencyNormal
}

// MarkScanned records that address was just revalidated against the
// fetcher, so IterDue can skip it until its rescan interval elapses.
// aggregateValueUSD is the wallet's total position notional observed on
// this scan; it reclassifies the wallet's frequency class the same way
// a fresh discovery sighting would (spec.md §4.2), so a wallet that
// grows past infrequentNotionalUSD is promoted to normal cadence
// without waiting for a new cohort sighting, and a wallet that shrinks
// gets demoted back to infrequent. The updated row is written through
// to the durable store the same way Upsert is.
func (r *Registry) MarkScanned(ctx context.Context, addr string, at time.Time, aggregateValueUSD float64) {
	r.mu.Lock()
	w, ok := r.wallets[addr]
	if !ok {
		r.mu.Unlock()
		return
	}
	w.LastScanned = at
	w.ScanCount++
	if aggregateValueUSD > 0 {
		w.LastNotional = aggregateValueUSD
		w.Frequency = r.classify(aggregateValueUSD)
	}
	r.wallets[addr] = w
	store, log := r.store, r.log
	r.mu.Unlock()

	r.persist(ctx, store, log, w)
}

func (r *Registry) persist(ctx context.Context, store WalletStore, log *zap.Logger, w domain.Wallet) {
	if store == nil {
		return
	}
	if err := store.SaveWallet(ctx, w); err != nil {
		log.Warn("persisting wallet registry entry failed", zap.String("address", w.Address), zap.Error(err))
	}
}

// Get returns the registry entry for address, if present.
func (r *Registry) Get(addr string) (domain.Wallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[addr]
	return w, ok
}

// IterDue calls fn for every wallet due for revalidation as of now:
// FrequencyNormal wallets are always due, FrequencyInfrequent wallets
// are due only after infrequentRescan has elapsed since LastScanned
// (spec.md §4.2, "lazy revalidation").
func (r *Registry) IterDue(now time.Time, fn func(domain.Wallet)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.Frequency == domain.FrequencyInfrequent {
			if !w.LastScanned.IsZero() && now.Sub(w.LastScanned) < r.infrequentRescan {
				continue
			}
		}
		fn(w)
	}
}

// Size returns the number of registered wallets.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

// All returns a snapshot of every registered wallet.
func (r *Registry) All() []domain.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, w)
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
