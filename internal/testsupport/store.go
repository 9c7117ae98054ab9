package testsupport

import (
	"context"
	"testing"
	"time"

	"audiotube/internal/config"
	"audiotube/internal/history"
)

// MustOpenHistory opens the upload ledger for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordUpload inserts a finished run for tests.
func RecordUpload(t testing.TB, store *history.Store, runID, title string, status history.Status, at time.Time) {
	t.Helper()

	ctx := context.Background()
	if err := store.RecordStart(ctx, history.Start{RunID: runID, ChatID: 42, Title: title, InputKind: "voice", At: at}); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	finish := history.Finish{RunID: runID, Status: status, At: at.Add(time.Minute)}
	if status == history.StatusCompleted {
		finish.URL = "https://youtu.be/" + runID
	} else {
		finish.Error = "upload failed"
	}
	if err := store.RecordFinish(ctx, finish); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}
}
