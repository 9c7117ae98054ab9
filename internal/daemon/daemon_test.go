package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"audiotube/internal/api"
	"audiotube/internal/config"
	"audiotube/internal/history"
	"audiotube/internal/logging"
	"audiotube/internal/notifications"
	"audiotube/internal/session"
	"audiotube/internal/testsupport"
	"audiotube/internal/youtube"
)

type fakeAPI struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: config.FileID, FilePath: "voice/" + config.FileID + ".oga"}, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, msg := range f.sent {
		out = append(out, msg.Text)
	}
	return out
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithCoverImage())
	cfg.YouTube.Enabled = false
	cfg.API.Enabled = false
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config, tg *fakeAPI, opts ...Option) *Daemon {
	t.Helper()
	opts = append([]Option{
		WithAlerts(notifications.Noop()),
		WithUploader(youtube.Disabled{}),
	}, opts...)
	d, err := New(cfg, tg, "audiotube_test_bot", logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
		Text: text,
	}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, newFakeAPI(), "", logging.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := New(newTestConfig(t), nil, "", logging.NewNop()); err == nil {
		t.Fatal("expected error for nil api")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	first := newTestDaemon(t, cfg, newFakeAPI())
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := first.Start(ctx); err == nil {
		t.Fatal("expected error starting a running daemon")
	}

	second := newTestDaemon(t, cfg, newFakeAPI())
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	first.Stop()
	if first.Status(ctx).Running {
		t.Fatal("expected stopped daemon")
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonRepliesToPassword(t *testing.T) {
	cfg := newTestConfig(t)
	tg := newFakeAPI()
	d := newTestDaemon(t, cfg, tg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tg.updates <- textUpdate(42, "najma")
	waitFor(t, func() bool { return len(tg.sentTexts()) == 1 })
	if got := tg.sentTexts()[0]; got != session.MsgPasswordAccepted {
		t.Fatalf("reply = %q", got)
	}

	status := d.Status(ctx)
	if status.Sessions[session.StateAwaitingBoth] != 1 {
		t.Fatalf("expected one awaiting_both session, got %v", status.Sessions)
	}

	d.Stop()
	tg.mu.Lock()
	stopped := tg.stopped
	tg.mu.Unlock()
	if !stopped {
		t.Fatal("expected polling to be stopped")
	}
}

func TestDaemonRunReturnsOnCancel(t *testing.T) {
	d := newTestDaemon(t, newTestConfig(t), newFakeAPI())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	waitFor(t, func() bool { return d.Status(context.Background()).Running })
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDaemonMarksInterruptedRuns(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	if err := store.RecordStart(ctx, history.Start{RunID: "stale", ChatID: 7, Title: "t", InputKind: "audio", At: time.Now()}); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	d := newTestDaemon(t, cfg, newFakeAPI(), WithHistory(store))
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	rec, err := store.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != history.StatusInterrupted {
		t.Fatalf("status = %s, want interrupted", rec.Status)
	}
}

func TestFileEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"http://localhost:8081/bot%s/%s", "http://localhost:8081/file/bot%s/%s"},
		{tgbotapi.APIEndpoint, tgbotapi.FileEndpoint},
	}
	for _, tt := range tests {
		if got := fileEndpoint(tt.in); got != tt.want {
			t.Errorf("fileEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSendTestNotificationWithoutTopic(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Notifications.NtfyTopic = ""
	sent, message, err := SendTestNotification(context.Background(), cfg)
	if err != nil || sent || message != "ntfy topic not configured" {
		t.Fatalf("got sent=%v message=%q err=%v", sent, message, err)
	}
}

func newAPIDaemon(t *testing.T, token string, opts ...Option) *Daemon {
	t.Helper()
	cfg := newTestConfig(t)
	cfg.API.Enabled = true
	cfg.API.Token = token
	if len(opts) == 0 {
		return newTestDaemon(t, cfg, newFakeAPI())
	}
	return newTestDaemon(t, cfg, newFakeAPI(), opts...)
}

func doRequest(t *testing.T, d *Daemon, target, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := d.api.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIServerDisabled(t *testing.T) {
	d := newTestDaemon(t, newTestConfig(t), newFakeAPI())
	if d.api != nil {
		t.Fatal("expected no api server when disabled")
	}
}

func TestAPIStatus(t *testing.T) {
	d := newAPIDaemon(t, "")
	resp := doRequest(t, d, "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var payload api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Running || payload.Bot != "audiotube_test_bot" {
		t.Fatalf("unexpected status: %+v", payload)
	}
	if payload.Workers.Capacity != 2 {
		t.Fatalf("worker capacity = %d, want 2", payload.Workers.Capacity)
	}
	if len(payload.Sessions) != len(session.States) {
		t.Fatalf("expected every session state, got %v", payload.Sessions)
	}
	if !payload.Downloaders["direct"] {
		t.Fatalf("expected direct downloader available, got %v", payload.Downloaders)
	}
	if payload.UploadsOn {
		t.Fatal("uploads should be disabled")
	}
}

func TestAPIAuth(t *testing.T) {
	d := newAPIDaemon(t, "secret")

	resp := doRequest(t, d, "/api/health", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error != "unauthorized" {
		t.Fatalf("unexpected error body %+v (%v)", body, err)
	}

	if resp := doRequest(t, d, "/api/health", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, d, "/api/health", "secret"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestAPIUploads(t *testing.T) {
	cfg := newTestConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	testsupport.RecordUpload(t, store, "run-1", "First", history.StatusCompleted, base)
	testsupport.RecordUpload(t, store, "run-2", "Second", history.StatusFailed, base.Add(time.Hour))

	cfg.API.Enabled = true
	d := newTestDaemon(t, cfg, newFakeAPI(), WithHistory(store))

	resp := doRequest(t, d, "/api/uploads?limit=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var list api.UploadListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].RunID != "run-2" {
		t.Fatalf("expected newest run only, got %+v", list.Items)
	}

	if resp := doRequest(t, d, "/api/uploads?limit=0", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, d, "/api/uploads?chat=99", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for unknown chat, got %d", resp.StatusCode)
	}
}

func TestAPIUploadsWithoutHistory(t *testing.T) {
	d := newAPIDaemon(t, "")
	resp := doRequest(t, d, "/api/uploads", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["items"]) != "[]" {
		t.Fatalf("items = %s, want []", raw["items"])
	}
}
