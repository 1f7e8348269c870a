package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/colthorp/headlines-go/internal/cache"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "history.db"), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordsAndSummarizes(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	if err := j.RecordRefresh(ctx, false, cache.Outcome{OK: true, Message: "saved 5"}, 1500*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordRefresh(ctx, true, cache.Outcome{OK: false, Message: "exit status 1"}, time.Second); err != nil {
		t.Fatal(err)
	}

	count := 5
	d := &cache.Decision{
		Source: cache.SourceNewlyFetched,
		Detail: cache.Detail{Path: "/data/headline_2025-01-03.csv", RecordCount: &count, Note: cache.NoteNewlyFetched},
	}
	if err := j.RecordDecision(ctx, d); err != nil {
		t.Fatal(err)
	}

	s, err := j.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Refreshes != 2 || s.Decisions != 1 {
		t.Errorf("counts = %d/%d, want 2/1", s.Refreshes, s.Decisions)
	}
	if s.LastRefresh == nil || s.LastRefresh.OK || !s.LastRefresh.Forced {
		t.Errorf("LastRefresh = %+v, want the failed forced attempt", s.LastRefresh)
	}
	if s.LastSuccess == nil || s.LastSuccess.Message != "saved 5" || s.LastSuccess.Elapsed != 1500*time.Millisecond {
		t.Errorf("LastSuccess = %+v", s.LastSuccess)
	}
	if s.LastDecision == nil || s.LastDecision.Source != cache.SourceNewlyFetched || s.LastDecision.RecordCount != 5 {
		t.Errorf("LastDecision = %+v", s.LastDecision)
	}
	if !s.LastDecision.At.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("LastDecision.At = %v", s.LastDecision.At)
	}
}

func TestJournalEmptySummary(t *testing.T) {
	s, err := openTest(t).Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.LastRefresh != nil || s.LastSuccess != nil || s.LastDecision != nil {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestJournalPruneAndClear(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	j.now = func() time.Time { return old }
	j.RecordRefresh(ctx, false, cache.Outcome{OK: true}, 0)
	j.RecordDecision(ctx, &cache.Decision{Source: cache.SourceNone})

	j.now = func() time.Time { return recent }
	j.RecordRefresh(ctx, false, cache.Outcome{OK: true}, 0)

	n, err := j.Prune(ctx, recent.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}

	if err := j.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ := j.Summary(ctx)
	if s.Refreshes != 0 || s.Decisions != 0 {
		t.Errorf("expected empty journal after Clear, got %+v", s)
	}
}

func TestJournalAsResolverJournal(t *testing.T) {
	j := openTest(t)
	store := cache.NewMemoryStore()
	r := cache.NewResolver(store, nil,
		cache.WithJournal(j),
		cache.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	if _, err := r.Resolve(context.Background(), cache.NewRequest(false)); err != nil {
		t.Fatal(err)
	}

	s, err := j.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Refreshes != 1 || s.LastDecision == nil || s.LastDecision.Source != cache.SourceNone {
		t.Errorf("summary = %+v", s)
	}
}
