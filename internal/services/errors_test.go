package services_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"audiotube/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcode", "wav", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "wav", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestOutcomeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "completed"},
		{services.Wrap(services.ErrConfiguration, "upload", "", "disabled", nil), "misconfigured"},
		{services.Wrap(services.ErrNotFound, "compose", "", "image missing", nil), "misconfigured"},
		{services.Wrap(services.ErrTimeout, "run", "", "deadline", nil), "timed_out"},
		{services.Wrap(services.ErrExternalTool, "wav", "", "exit 1", nil), "failed"},
	}
	for _, tc := range cases {
		if got := services.Outcome(tc.err); got != tc.want {
			t.Fatalf("Outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUserMessageDropsMarker(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "compose", "", "ffmpeg exited with code 1", nil)
	got := services.UserMessage(err)
	if strings.HasPrefix(got, "external tool error") {
		t.Fatalf("expected marker stripped, got %q", got)
	}
	if got != "compose: ffmpeg exited with code 1" {
		t.Fatalf("unexpected message %q", got)
	}
	multi := fmt.Errorf("line one\nline two")
	if got := services.UserMessage(multi); got != "line one line two" {
		t.Fatalf("expected whitespace collapsed, got %q", got)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTimeout(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net", fmt.Errorf("get file: %w", timeoutErr{}), true},
		{"text", errors.New("Post \"https://api.telegram.org\": request timed out"), true},
		{"marker", services.Wrap(services.ErrTimeout, "fetch", "", "", nil), true},
		{"other", errors.New("Bad Request: file is too big"), false},
	}
	for _, tc := range cases {
		if got := services.IsTimeout(tc.err); got != tc.want {
			t.Fatalf("%s: IsTimeout = %v, want %v", tc.name, got, tc.want)
		}
	}
}
