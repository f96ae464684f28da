package summary

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"hl-liq-watch/internal/config"
	"hl-liq-watch/internal/domain"
)

type fakeCache struct {
	positions []domain.CachedPosition
}

func (f fakeCache) All() []domain.CachedPosition { return f.positions }

type fakeSender struct {
	messages []string
}

func (f *fakeSender) Send(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func TestNextFireAtSameDayWhenBeforeTarget(t *testing.T) {
	s, err := New(fakeCache{}, &fakeSender{}, config.SummaryConfig{Time: "06:00", Timezone: "UTC"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	next := s.NextFireAt(now)
	want := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextFireAtRollsToNextDayWhenPastTarget(t *testing.T) {
	s, err := New(fakeCache{}, &fakeSender{}, config.SummaryConfig{Time: "06:00", Timezone: "UTC"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	next := s.NextFireAt(now)
	want := time.Date(2026, 1, 2, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestRunOnceSendsFormattedSummary(t *testing.T) {
	cache := fakeCache{positions: []domain.CachedPosition{
		{Position: domain.Position{Key: domain.PositionKey{Address: "0x1", Token: "BTC", Exchange: "main", Side: "long"}}, Tier: domain.TierCritical},
	}}
	sender := &fakeSender{}
	s, err := New(cache, sender, config.SummaryConfig{Time: "06:00", Timezone: "UTC"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(sender.messages))
	}
}

func TestNewRejectsInvalidTime(t *testing.T) {
	if _, err := New(fakeCache{}, &fakeSender{}, config.SummaryConfig{Time: "25:99", Timezone: "UTC"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for out-of-range time")
	}
}
