// Package summary implements the wall-clock daily summary trigger
// (spec.md §4.8): once a day at a configured local time, it snapshots
// the cache, groups it by tier, and sends the result through the
// alerts sender. Summaries are never deduplicated.
package summary

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/alerts"
	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

// Snapshotter supplies the positions to summarize.
type Snapshotter interface {
	All() []domain.CachedPosition
}

type Scheduler struct {
	cache  Snapshotter
	sender alerts.Sender
	cfg    config.SummaryConfig
	log    *zap.Logger

	loc      *time.Location
	hour, min int
}

func New(cache Snapshotter, sender alerts.Sender, cfg config.SummaryConfig, log *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading summary timezone %q: %w", cfg.Timezone, err)
	}
	hour, minute, err := parseHHMM(cfg.Time)
	if err != nil {
		return nil, err
	}
	return &Scheduler{cache: cache, sender: sender, cfg: cfg, log: log, loc: loc, hour: hour, min: minute}, nil
}

func parseHHMM(s string) (int, int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("parsing summary.time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("summary.time %q out of range", s)
	}
	return h, m, nil
}

// NextFireAt returns the next wall-clock instant strictly after now at
// which the summary fires.
func (s *Scheduler) NextFireAt(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.min, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce sends the current summary immediately, regardless of
// wall-clock time. Used for manual triggers and tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	positions := s.cache.All()
	return s.sender.Send(ctx, alerts.FormatSummary(positions))
}

// Run blocks, firing RunOnce once per calendar day at the configured
// local time, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait := time.Until(s.NextFireAt(time.Now()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("daily summary send failed", zap.Error(err))
		}
	}
}
