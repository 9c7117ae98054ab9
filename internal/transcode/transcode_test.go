package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"unicode/utf8"

	"audiotube/internal/logging"
	"audiotube/internal/services"
)

func setHelperCommand(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode), "FFMPEG_HELPER_OUT="+args[len(args)-1])
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		_ = os.WriteFile(os.Getenv("FFMPEG_HELPER_OUT"), []byte("media"), 0o600)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "input.ogg: Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func TestToWAVUsesDecodeTemplate(t *testing.T) {
	captured := setHelperCommand(t, "success")
	tr := New(Options{}, logging.NewNop())

	out := tr.ToWAV(context.Background(), "/tmp/in.ogg", t.TempDir()+"/in.wav")
	if !out.OK() || out.Err("wav") != nil {
		t.Fatalf("expected success, got %+v", out)
	}
	got := strings.Join((*captured)[:7], " ")
	if got != "ffmpeg -y -hide_banner -loglevel error -i /tmp/in.ogg" {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestStillVideoArgs(t *testing.T) {
	tr := New(Options{FFmpegPath: "/usr/bin/ffmpeg", MaxWidth: 1280, Preset: "fast", CRF: 23, AudioBitrate: "192k"}, nil)
	args := strings.Join(tr.StillVideoArgs("cover.jpg", "a.mp3", "a.mp4"), " ")
	for _, want := range []string{
		"-loop 1 -i cover.jpg -i a.mp3",
		"-c:v libx264 -preset fast -crf 23",
		"-vf scale='min(iw,1280)':-2,pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-tune stillimage -c:a aac -b:a 192k -pix_fmt yuv420p -shortest a.mp4",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	if tr.Binary() != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected binary %q", tr.Binary())
	}
}

func TestDefaultsMatchStillVideoTemplate(t *testing.T) {
	args := strings.Join(New(Options{}, nil).StillVideoArgs("i.png", "a.mp3", "o.mp4"), " ")
	if !strings.Contains(args, "-preset veryfast -crf 28 -vf scale='min(iw,720)'") || !strings.Contains(args, "-b:a 128k") {
		t.Fatalf("unexpected default args %q", args)
	}
}

func TestFailureCapturesDiagnostic(t *testing.T) {
	setHelperCommand(t, "failure")
	tr := New(Options{}, logging.NewNop())

	out := tr.ToMP3(context.Background(), "in.wav", t.TempDir()+"/in.mp3")
	if out.OK() || out.ExitCode != 1 {
		t.Fatalf("expected exit 1, got %+v", out)
	}
	if !strings.Contains(out.Stderr, "Invalid data found") {
		t.Fatalf("expected stderr captured, got %q", out.Stderr)
	}
	err := out.Err("mp3")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(services.UserMessage(err), "Invalid data found") {
		t.Fatalf("expected diagnostic in user message, got %q", services.UserMessage(err))
	}
}

func TestMissingBinaryIsOutcomeNotPanic(t *testing.T) {
	tr := New(Options{FFmpegPath: "/nonexistent/ffmpeg-binary"}, logging.NewNop())
	out := tr.ToWAV(context.Background(), "in.ogg", "out.wav")
	if out.ExitCode != -1 || out.Stderr == "" {
		t.Fatalf("expected start failure outcome, got %+v", out)
	}
}

func TestTailKeepsEnd(t *testing.T) {
	long := strings.Repeat("a", maxDiagnostic) + "END"
	got := tail(long)
	if utf8.RuneCountInString(got) != maxDiagnostic || !strings.HasSuffix(got, "END") {
		t.Fatalf("unexpected tail length %d", utf8.RuneCountInString(got))
	}
}

func TestTailCutsOnCharacterBoundary(t *testing.T) {
	got := tail(strings.Repeat("é", 3000) + "x")
	if !utf8.ValidString(got) {
		t.Fatalf("tail produced invalid UTF-8: % x", got[:4])
	}
	if utf8.RuneCountInString(got) > maxDiagnostic || !strings.HasSuffix(got, "éx") {
		t.Fatalf("unexpected tail %q", got[len(got)-8:])
	}
	if got := tail("bad \xff\xfe bytes"); !utf8.ValidString(got) {
		t.Fatalf("tail kept invalid bytes: %q", got)
	}
}
