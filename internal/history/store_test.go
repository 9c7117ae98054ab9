package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"audiotube/internal/config"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "state", "history.db")
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.RecordStart(ctx, Start{RunID: "run-1", ChatID: 42, Title: "My Song", InputKind: "voice", At: started}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.RecordFinish(ctx, Finish{RunID: "run-1", Status: StatusCompleted, URL: "https://youtu.be/abc", At: started.Add(90 * time.Second)}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	rec, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != StatusCompleted || rec.URL != "https://youtu.be/abc" || rec.ChatID != 42 || rec.InputKind != "voice" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.SourceName != "" || rec.Error != "" {
		t.Fatalf("expected empty optional fields, got %+v", rec)
	}
	if rec.Duration() != 90*time.Second {
		t.Fatalf("unexpected duration %s", rec.Duration())
	}
}

func TestRecordFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.RecordFinish(context.Background(), Finish{RunID: "missing", Status: StatusFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestRecentFiltersAndOrders(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, chat := range []int64{1, 2, 1} {
		start := Start{RunID: string(rune('a' + i)), ChatID: chat, Title: "t", At: base.Add(time.Duration(i) * time.Minute)}
		if err := store.RecordStart(ctx, start); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.Recent(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].RunID != "c" || all[2].RunID != "a" {
		t.Fatalf("unexpected order %+v", all)
	}
	mine, err := store.Recent(ctx, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected two records for chat 1, got %d", len(mine))
	}
}

func TestMarkInterruptedAndStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_ = store.RecordStart(ctx, Start{RunID: "r1", ChatID: 1, Title: "t"})
	_ = store.RecordStart(ctx, Start{RunID: "r2", ChatID: 1, Title: "t"})
	_ = store.RecordFinish(ctx, Finish{RunID: "r2", Status: StatusFailed, Error: "ffmpeg exit 1"})

	n, err := store.MarkInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one interrupted run, got %d err=%v", n, err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[StatusInterrupted] != 1 || stats[StatusFailed] != 1 || stats[StatusRunning] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestPruneKeepsRunning(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	_ = store.RecordStart(ctx, Start{RunID: "done", ChatID: 1, Title: "t", At: old})
	_ = store.RecordFinish(ctx, Finish{RunID: "done", Status: StatusCompleted})
	_ = store.RecordStart(ctx, Start{RunID: "live", ChatID: 1, Title: "t", At: old})

	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one pruned record, got %d err=%v", n, err)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Fatalf("running record pruned: %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	first, err := Open(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.RecordStart(context.Background(), Start{RunID: "x", ChatID: 1, Title: "t"})
	_ = first.Close()

	second, err := Open(&cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.Get(context.Background(), "x"); err != nil {
		t.Fatalf("expected record after reopen: %v", err)
	}
}
