package history_test

import (
	"context"
	"testing"
	"time"

	"linkrelay/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecentNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	links := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	for i, link := range links {
		if _, err := store.Record(ctx, history.Record{
			RunID:      "run-1",
			Link:       link,
			Outcome:    history.OutcomeDelivered,
			SizeBytes:  int64(100 * (i + 1)),
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Link != links[2] || recent[1].Link != links[1] {
		t.Fatalf("unexpected order: %q, %q", recent[0].Link, recent[1].Link)
	}
	if !recent[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("started_at not preserved: %v", recent[0].StartedAt)
	}
}

func TestStatsGroupsByOutcomeAndRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	records := []history.Record{
		{RunID: "run-1", Link: "https://x/1", Outcome: history.OutcomeDelivered, SizeBytes: 10},
		{RunID: "run-1", Link: "https://x/2", Outcome: history.OutcomeFailed, Reason: "too_large"},
		{RunID: "run-1", Link: "https://x/3", Outcome: history.OutcomeSkipped},
		{RunID: "run-2", Link: "https://x/4", Outcome: history.OutcomeDelivered, SizeBytes: 5},
	}
	for _, rec := range records {
		if _, err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	run1, err := store.Stats(ctx, "run-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if run1.Delivered != 1 || run1.Failed != 1 || run1.Skipped != 1 || run1.BytesDelivered != 10 {
		t.Fatalf("unexpected run-1 stats: %+v", run1)
	}

	all, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if all.Delivered != 2 || all.BytesDelivered != 15 || all.Total() != 4 {
		t.Fatalf("unexpected aggregate stats: %+v", all)
	}
}

func TestStoresAreIsolated(t *testing.T) {
	first := openStore(t)
	second := openStore(t)
	ctx := context.Background()

	if _, err := first.Record(ctx, history.Record{RunID: "r", Link: "https://x/1", Outcome: history.OutcomeSkipped}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	recent, err := second.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected empty second store, got %d records", len(recent))
	}
}

func TestRecordRejectsEmptyLink(t *testing.T) {
	store := openStore(t)
	if _, err := store.Record(context.Background(), history.Record{Outcome: history.OutcomeFailed}); err == nil {
		t.Fatal("expected error for empty link")
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *history.Store
	if _, err := store.Record(context.Background(), history.Record{Link: "x"}); err != nil {
		t.Fatalf("nil Record: %v", err)
	}
	if stats, err := store.Stats(context.Background(), ""); err != nil || stats.Total() != 0 {
		t.Fatalf("nil Stats: %+v %v", stats, err)
	}
}

func TestSchemaVersionStamped(t *testing.T) {
	store := openStore(t)
	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
}

func TestRecordRejectsUnknownOutcome(t *testing.T) {
	store := openStore(t)
	if _, err := store.Record(context.Background(), history.Record{
		RunID:   "run-1",
		Link:    "https://a.example/1",
		Outcome: history.Outcome("retried"),
	}); err == nil {
		t.Fatal("expected unknown outcome to violate the schema")
	}
}
