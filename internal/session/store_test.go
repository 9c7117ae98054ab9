package session_test

import (
	"errors"
	"testing"
	"time"

	"audiotube/internal/session"
)

func TestStoreUpsertGetDelete(t *testing.T) {
	audio := writeAudio(t, "owned.orig")
	store := session.NewStore(time.Hour)
	store.Upsert(session.Session{ChatID: 1, State: session.StateAwaitingTitle, AudioPath: audio})

	got, ok := store.Get(1)
	if !ok || got.State != session.StateAwaitingTitle || got.LastActivity.IsZero() {
		t.Fatalf("unexpected session: %+v %v", got, ok)
	}
	got.Title = "mutated copy"
	if again, _ := store.Get(1); again.Title != "" {
		t.Fatal("expected Get to return a copy")
	}

	if !store.Delete(1) {
		t.Fatal("expected Delete to report removal")
	}
	if store.Delete(1) {
		t.Fatal("expected second Delete to report nothing removed")
	}
	assertGone(t, audio)
}

func TestStoreUpsertReplacesOwnedFile(t *testing.T) {
	oldAudio := writeAudio(t, "old.orig")
	newAudio := writeAudio(t, "new.orig")
	store := session.NewStore(time.Hour)
	store.Upsert(session.Session{ChatID: 2, State: session.StateAwaitingPassword, AudioPath: oldAudio})
	store.Upsert(session.Session{ChatID: 2, State: session.StateAwaitingPassword, AudioPath: newAudio})
	assertGone(t, oldAudio)
	assertExists(t, newAudio)
}

func TestStoreRemoveRequiresMatchingRun(t *testing.T) {
	audio := writeAudio(t, "run.orig")
	store := session.NewStore(time.Hour)
	store.Upsert(session.Session{ChatID: 3, State: session.StateAwaitingAudio, AudioPath: audio})
	if store.Remove(3, "") {
		t.Fatal("expected Remove to ignore waiting sessions")
	}
	store.Upsert(session.Session{ChatID: 3, State: session.StateProcessing, RunID: "r1", AudioPath: audio})
	if store.Remove(3, "r2") {
		t.Fatal("expected Remove to ignore other runs")
	}
	if !store.Remove(3, "r1") {
		t.Fatal("expected Remove to succeed")
	}
	assertExists(t, audio)
}

func TestStoreCleanupFailureIsNotFatal(t *testing.T) {
	calls := 0
	store := session.NewStore(time.Minute, session.WithRemover(func(string) error {
		calls++
		return errors.New("read-only filesystem")
	}))
	store.Upsert(session.Session{ChatID: 4, State: session.StateAwaitingTitle, AudioPath: "/nonexistent/a.orig"})
	if !store.Delete(4) {
		t.Fatal("expected Delete to succeed despite cleanup error")
	}
	if calls != 1 {
		t.Fatalf("expected one removal attempt, got %d", calls)
	}
}

func TestStoreCountsAndClose(t *testing.T) {
	waiting := writeAudio(t, "waiting.orig")
	store := session.NewStore(time.Hour)
	store.Upsert(session.Session{ChatID: 5, State: session.StateAwaitingTitle, AudioPath: waiting})
	store.Upsert(session.Session{ChatID: 6, State: session.StateProcessing, RunID: "r"})
	store.Upsert(session.Session{ChatID: 7, State: session.StateAwaitingBoth})

	counts := store.CountByState()
	if counts[session.StateAwaitingTitle] != 1 || counts[session.StateProcessing] != 1 || counts[session.StateAwaitingPassword] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	snap := store.Snapshot()
	if len(snap) != 3 || snap[0].ChatID != 5 || snap[2].ChatID != 7 {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}

	store.Close()
	assertGone(t, waiting)
	if store.Len() != 1 {
		t.Fatalf("expected only processing session after Close, got %d", store.Len())
	}
}

func TestStoreSweepDisabledWithoutTimeout(t *testing.T) {
	store := session.NewStore(0)
	store.Upsert(session.Session{ChatID: 8, State: session.StateAwaitingBoth, LastActivity: time.Unix(0, 0)})
	if evicted := store.SweepExpired(time.Now()); len(evicted) != 0 {
		t.Fatalf("expected no eviction, got %v", evicted)
	}
}
