package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audiotube/internal/config"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present", "#!/bin/sh\nexit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != present {
		t.Fatalf("expected first requirement to resolve to %s, got %#v", present, results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestRequirementsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Transcode.FFmpegPath = "/opt/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffmpeg" || reqs[0].Optional {
		t.Fatalf("unexpected ffmpeg requirement %+v", reqs)
	}
	if !reqs[1].Optional || reqs[1].Name != "aria2c" {
		t.Fatalf("expected optional aria2c requirement, got %+v", reqs[1])
	}
}

func TestCheckFFmpegRunsVersion(t *testing.T) {
	dir := t.TempDir()
	ok := writeStub(t, dir, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024'\nexit 0\n")
	broken := writeStub(t, dir, "ffmpeg-broken", "#!/bin/sh\nexit 1\n")

	status := CheckFFmpeg(context.Background(), ok)
	if !status.Available || !strings.HasPrefix(status.Detail, "ffmpeg version 7.1") {
		t.Fatalf("expected available ffmpeg, got %#v", status)
	}
	if got := CheckFFmpeg(context.Background(), broken); got.Available {
		t.Fatalf("expected failing ffmpeg to be unavailable, got %#v", got)
	}
	t.Setenv("PATH", "")
	if got := CheckFFmpeg(context.Background(), ""); got.Available || got.Command != "ffmpeg" {
		t.Fatalf("expected missing ffmpeg, got %#v", got)
	}
}

func TestFFmpegProbeCachesSuccessOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	probe := NewFFmpegProbe(path, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	probe.now = func() time.Time { return now }

	if probe.Available(context.Background()) {
		t.Fatal("expected missing binary to be unavailable")
	}
	writeStub(t, dir, "ffmpeg", "#!/bin/sh\nexit 0\n")
	if !probe.Available(context.Background()) {
		t.Fatal("expected newly installed binary to be picked up")
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !probe.Available(context.Background()) {
		t.Fatal("expected cached positive answer")
	}
	now = now.Add(2 * time.Minute)
	if probe.Available(context.Background()) {
		t.Fatal("expected recheck after ttl")
	}
}
