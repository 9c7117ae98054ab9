package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"audiotube/internal/config"
	"audiotube/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	click    string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			click:    r.Header.Get("Click"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyUploadCompleted(context.Background(), "Song", "https://youtu.be/x"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Uploads = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyUploadCompleted(ctx, " My Song ", "https://youtu.be/abc"); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyUploadFailed(ctx, "My Song", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "audio handler"); err != nil {
		t.Fatal(err)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatal(err)
	}

	got := requests()
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	if got[0].title != "audiotube - Uploaded" || got[0].body != "✅ My Song\nhttps://youtu.be/abc" || got[0].click != "https://youtu.be/abc" {
		t.Fatalf("unexpected upload payload %+v", got[0])
	}
	if got[1].body != "❌ My Song: unknown" || got[1].priority != "high" {
		t.Fatalf("unexpected failure payload %+v", got[1])
	}
	if got[2].body != "❌ Error with audio handler: boom" || got[2].tags != "audiotube,error,alert" {
		t.Fatalf("unexpected error payload %+v", got[2])
	}
	if got[3].priority != "low" {
		t.Fatalf("unexpected test payload %+v", got[3])
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Uploads = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	_ = svc.NotifyUploadCompleted(context.Background(), "a", "b")
	_ = svc.NotifyUploadFailed(context.Background(), "a", "b")
	_ = svc.NotifyError(context.Background(), errors.New("x"), "")
	if n := len(requests()); n != 0 {
		t.Fatalf("expected toggled-off events to be skipped, got %d requests", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusTooManyRequests)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
