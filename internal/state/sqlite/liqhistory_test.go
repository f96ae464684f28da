package sqlite

import (
	"context"
	"testing"
)

func newTestLiqHistoryReader(t *testing.T) *LiqHistoryReader {
	t.Helper()
	r, err := NewLiqHistoryReader(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening reader: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func insertLiqHistoryRow(t *testing.T, r *LiqHistoryReader, address string, notional float64, importedAt int64) {
	t.Helper()
	if _, err := r.db.Exec(`INSERT INTO liquidation_history (address, notional_usd, imported_at) VALUES (?, ?, ?)`,
		address, notional, importedAt); err != nil {
		t.Fatalf("unexpected error inserting row: %v", err)
	}
}

func TestPollNewReturnsRowsInsertedSinceLastID(t *testing.T) {
	r := newTestLiqHistoryReader(t)
	insertLiqHistoryRow(t, r, "0xabc", 500_000, 1000)
	insertLiqHistoryRow(t, r, "0xdef", 250_000, 2000)

	sightings, err := r.PollNew(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sightings) != 2 {
		t.Fatalf("expected 2 sightings, got %d", len(sightings))
	}
	if sightings[0].Address != "0xabc" || sightings[1].Address != "0xdef" {
		t.Fatalf("expected rows ordered by id, got %+v", sightings)
	}
}

func TestPollNewDoesNotReplayAlreadyPolledRows(t *testing.T) {
	r := newTestLiqHistoryReader(t)
	insertLiqHistoryRow(t, r, "0xabc", 500_000, 1000)

	if _, err := r.PollNew(context.Background()); err != nil {
		t.Fatalf("unexpected error on first poll: %v", err)
	}

	sightings, err := r.PollNew(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second poll: %v", err)
	}
	if len(sightings) != 0 {
		t.Fatalf("expected no rows on a poll with nothing new, got %+v", sightings)
	}

	insertLiqHistoryRow(t, r, "0xdef", 250_000, 2000)
	sightings, err = r.PollNew(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on third poll: %v", err)
	}
	if len(sightings) != 1 || sightings[0].Address != "0xdef" {
		t.Fatalf("expected only the newly inserted row, got %+v", sightings)
	}
}

func TestPollNewAdvancesLastIDPastPolledRow(t *testing.T) {
	r := newTestLiqHistoryReader(t)
	insertLiqHistoryRow(t, r, "0xabc", 500_000, 1000)
	if _, err := r.PollNew(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.lastID == 0 {
		t.Fatalf("expected lastID to advance past the seeded row")
	}
}
