package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"audiotube/internal/history"
	"audiotube/internal/logging"
	"audiotube/internal/pipeline"
	"audiotube/internal/services"
	"audiotube/internal/session"
	"audiotube/internal/transcode"
)

type funcRunner func(ctx context.Context, in pipeline.Input) (string, error)

func (f funcRunner) Run(ctx context.Context, in pipeline.Input) (string, error) {
	return f(ctx, in)
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recordingSender) Send(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[int64][]string)
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingSender) messages(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[chatID]...)
}

type recordingFinisher struct {
	mu       sync.Mutex
	finished []string
}

func (f *recordingFinisher) Finish(_ int64, runID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, runID)
	return true
}

type memoryLedger struct {
	mu       sync.Mutex
	started  []history.Start
	finished []history.Finish
}

func (m *memoryLedger) RecordStart(_ context.Context, s history.Start) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, s)
	return nil
}

func (m *memoryLedger) RecordFinish(_ context.Context, f history.Finish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, f)
	return nil
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	var (
		running atomic.Int64
		peak    atomic.Int64
		release = make(chan struct{})
	)
	runner := funcRunner(func(ctx context.Context, in pipeline.Input) (string, error) {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		<-release
		running.Add(-1)
		return "https://youtu.be/" + in.RunID, nil
	})
	s := NewScheduler(runner, SchedulerOptions{Concurrency: 2}, logging.NewNop())

	var results []<-chan Result
	for i := range 5 {
		results = append(results, s.Submit(context.Background(), Job{RunID: string(rune('a' + i)), ChatID: int64(i)}))
	}

	deadline := time.After(2 * time.Second)
	for s.Stats().Active != 2 || s.Stats().Queued != 3 {
		select {
		case <-deadline:
			t.Fatalf("pool never saturated: %+v", s.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)
	for _, ch := range results {
		res := <-ch
		if !res.OK() {
			t.Fatalf("unexpected failure %+v", res)
		}
	}
	s.Wait()
	if peak.Load() != 2 {
		t.Fatalf("expected peak concurrency 2, got %d", peak.Load())
	}
	if got := s.Stats(); got.Active != 0 || got.Queued != 0 || got.Capacity != 2 {
		t.Fatalf("unexpected final stats %+v", got)
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	runner := funcRunner(func(context.Context, pipeline.Input) (string, error) {
		panic("nil map")
	})
	s := NewScheduler(runner, SchedulerOptions{Concurrency: 1}, logging.NewNop())
	res := <-s.Submit(context.Background(), Job{RunID: "p"})
	if res.Err == nil || !strings.Contains(res.Err.Error(), "nil map") {
		t.Fatalf("expected panic converted to error, got %v", res.Err)
	}
	if s.Stats().Active != 0 {
		t.Fatal("slot not released after panic")
	}
}

func TestSchedulerAppliesRunTimeout(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, _ pipeline.Input) (string, error) {
		<-ctx.Done()
		return "", services.Wrap(services.ErrTimeout, "wav", "ffmpeg", "run exceeded its time limit", ctx.Err())
	})
	s := NewScheduler(runner, SchedulerOptions{Concurrency: 1, RunTimeout: 10 * time.Millisecond}, logging.NewNop())
	res := <-s.Submit(context.Background(), Job{RunID: "slow"})
	if !errors.Is(res.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", res.Err)
	}
}

func TestSchedulerCancelledBeforeStartDiscardsAudio(t *testing.T) {
	block := make(chan struct{})
	runner := funcRunner(func(context.Context, pipeline.Input) (string, error) {
		<-block
		return "u", nil
	})
	s := NewScheduler(runner, SchedulerOptions{Concurrency: 1}, logging.NewNop())
	first := s.Submit(context.Background(), Job{RunID: "first"})
	deadline := time.After(2 * time.Second)
	for s.Stats().Active != 1 {
		select {
		case <-deadline:
			t.Fatal("first job never started")
		case <-time.After(time.Millisecond):
		}
	}

	audio := filepath.Join(t.TempDir(), "queued.ogg")
	if err := os.WriteFile(audio, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	second := s.Submit(ctx, Job{RunID: "second", AudioPath: audio})
	cancel()

	res := <-second
	if res.Err == nil || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", res.Err)
	}
	if _, err := os.Stat(audio); !os.IsNotExist(err) {
		t.Fatal("expected queued audio removed")
	}
	close(block)
	<-first
}

func TestNotifierDeliversExactlyOnce(t *testing.T) {
	sender := &recordingSender{}
	finisher := &recordingFinisher{}
	ledger := &memoryLedger{}
	n := NewNotifier(sender, finisher, logging.NewNop(), WithLedger(ledger))

	ch := make(chan Result, 1)
	ch <- Result{Job: Job{RunID: "r1", ChatID: 7, Title: "t"}, Err: services.Wrap(services.ErrExternalTool, "mp3", "ffmpeg", "exit status 1: bad input", nil)}
	n.Watch(context.Background(), ch)
	n.Wait()

	msgs := sender.messages(7)
	if len(msgs) != 1 || msgs[0] != "❌ Upload gagal: mp3: ffmpeg: exit status 1: bad input" {
		t.Fatalf("unexpected messages %q", msgs)
	}
	if len(finisher.finished) != 1 || finisher.finished[0] != "r1" {
		t.Fatalf("expected one finish, got %v", finisher.finished)
	}
	if len(ledger.finished) != 1 || ledger.finished[0].Status != history.StatusFailed {
		t.Fatalf("unexpected ledger %+v", ledger.finished)
	}
}

func TestNotifierDeliversAfterCancel(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, &recordingFinisher{}, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan Result, 1)
	ch <- Result{Job: Job{RunID: "r", ChatID: 1}, URL: "https://youtu.be/x"}
	n.Watch(ctx, ch)
	n.Wait()
	if msgs := sender.messages(1); len(msgs) != 1 || msgs[0] != "✅ Selesai! Video terupload: https://youtu.be/x" {
		t.Fatalf("unexpected messages %q", msgs)
	}
}

func TestTerminalMessageWithoutURL(t *testing.T) {
	if got := TerminalMessage(Result{}); got != "❌ Upload gagal: upload returned no video URL" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestTerminalMessageFitsTelegramLimit(t *testing.T) {
	stderr := strings.Repeat("[mp3 @ 0x55d0] Header missing\n", 200)
	stderr = strings.Repeat("é", 3000) + stderr
	err := transcode.Outcome{ExitCode: 1, Stderr: stderr}.Err("video")

	got := TerminalMessage(Result{Err: err})
	if n := utf8.RuneCountInString(got); n > 4096 {
		t.Fatalf("terminal message has %d characters", n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("terminal message is not valid UTF-8")
	}
	if !strings.HasPrefix(got, "❌ Upload gagal: …") || !strings.HasSuffix(got, "Header missing") {
		t.Fatalf("expected the end of the diagnostic to survive, got %q", got[:64])
	}
}

func TestScenarioTitleThenVoice(t *testing.T) {
	dir := t.TempDir()
	store := session.NewStore(time.Hour)
	machine := session.NewMachine(store, session.MachineConfig{Password: "najma", MaxAttempts: 3, MaxTitle: 200}, logging.NewNop())

	if out := machine.HandleText(99, "najma"); out.Reply != session.MsgPasswordAccepted {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
	if out := machine.HandleText(99, "My Song"); out.State != session.StateAwaitingAudio {
		t.Fatalf("expected awaiting audio, got %s", out.State)
	}
	if _, proceed := machine.BeginAudio(99); !proceed {
		t.Fatal("expected audio to be accepted")
	}
	audio := filepath.Join(dir, "voice.ogg")
	if err := os.WriteFile(audio, []byte("ogg"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := machine.AttachAudio(99, session.Audio{Path: audio, Kind: "voice"})
	if out.Run == nil {
		t.Fatal("expected a run to be scheduled")
	}

	var gotTitle string
	runner := funcRunner(func(_ context.Context, in pipeline.Input) (string, error) {
		gotTitle = in.Title
		_ = os.Remove(in.AudioPath)
		return "https://youtu.be/abc123", nil
	})
	sender := &recordingSender{}
	ledger := &memoryLedger{}
	dispatcher := NewDispatcher(
		NewScheduler(runner, SchedulerOptions{Concurrency: 2}, logging.NewNop()),
		NewNotifier(sender, machine, logging.NewNop(), WithLedger(ledger)),
		ledger,
		logging.NewNop(),
	)
	dispatcher.Dispatch(context.Background(), *out.Run)
	dispatcher.Wait()

	if gotTitle != "My Song" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	msgs := sender.messages(99)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "https://youtu.be/") {
		t.Fatalf("unexpected messages %q", msgs)
	}
	if _, ok := store.Get(99); ok {
		t.Fatal("expected session removed after delivery")
	}
	if len(ledger.started) != 1 || len(ledger.finished) != 1 || ledger.finished[0].Status != history.StatusCompleted {
		t.Fatalf("unexpected ledger %+v %+v", ledger.started, ledger.finished)
	}
}
