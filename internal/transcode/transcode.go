package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"audiotube/internal/logging"
	"audiotube/internal/services"
	"audiotube/internal/textutil"
)

var commandContext = exec.CommandContext

// maxDiagnostic bounds how many characters of stderr an Outcome keeps.
const maxDiagnostic = 4096

// Outcome is the structured result of one ffmpeg invocation. ExitCode is -1
// when the process could not be started or was killed by a signal.
type Outcome struct {
	ExitCode int
	Stderr   string
	Elapsed  time.Duration
}

// OK reports whether the invocation exited 0.
func (o Outcome) OK() bool {
	return o.ExitCode == 0
}

// Err converts a failed outcome into an error tagged ErrExternalTool, or nil
// on success.
func (o Outcome) Err(stage string) error {
	if o.OK() {
		return nil
	}
	detail := strings.TrimSpace(o.Stderr)
	if detail == "" {
		detail = "no diagnostic output"
	}
	return services.Wrap(services.ErrExternalTool, stage, "ffmpeg",
		fmt.Sprintf("exit status %d: %s", o.ExitCode, detail), nil)
}

// Options controls the ffmpeg binary and still-video encoding.
type Options struct {
	FFmpegPath   string
	MaxWidth     int
	Preset       string
	CRF          int
	AudioBitrate string
}

// Transcoder runs the fixed ffmpeg argument templates.
type Transcoder struct {
	opts   Options
	logger *slog.Logger
}

// New builds a Transcoder, filling unset options with the defaults.
func New(opts Options, logger *slog.Logger) *Transcoder {
	if strings.TrimSpace(opts.FFmpegPath) == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 720
	}
	if strings.TrimSpace(opts.Preset) == "" {
		opts.Preset = "veryfast"
	}
	if opts.CRF <= 0 {
		opts.CRF = 28
	}
	if strings.TrimSpace(opts.AudioBitrate) == "" {
		opts.AudioBitrate = "128k"
	}
	return &Transcoder{opts: opts, logger: logging.NewComponentLogger(logger, "transcode")}
}

// Binary returns the configured ffmpeg executable.
func (t *Transcoder) Binary() string {
	return t.opts.FFmpegPath
}

// ToWAV decodes any input container to PCM wav.
func (t *Transcoder) ToWAV(ctx context.Context, src, dst string) Outcome {
	return t.run(ctx, "wav", WAVArgs(src, dst))
}

// ToMP3 encodes the wav intermediate to mp3.
func (t *Transcoder) ToMP3(ctx context.Context, src, dst string) Outcome {
	return t.run(ctx, "mp3", MP3Args(src, dst))
}

// StillVideo composes image and audio into an h264/aac mp4 that ends with the
// audio.
func (t *Transcoder) StillVideo(ctx context.Context, image, audio, dst string) Outcome {
	return t.run(ctx, "video", t.StillVideoArgs(image, audio, dst))
}

// WAVArgs is the decode template.
func WAVArgs(src, dst string) []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-i", src, dst}
}

// MP3Args is the compressed audio template.
func MP3Args(src, dst string) []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-i", src, dst}
}

// StillVideoArgs is the video composition template. Width is bounded by
// MaxWidth and both dimensions are padded to even values for yuv420p.
func (t *Transcoder) StillVideoArgs(image, audio, dst string) []string {
	filter := fmt.Sprintf("scale='min(iw,%d)':-2,pad=ceil(iw/2)*2:ceil(ih/2)*2", t.opts.MaxWidth)
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-loop", "1",
		"-i", image,
		"-i", audio,
		"-c:v", "libx264",
		"-preset", t.opts.Preset,
		"-crf", strconv.Itoa(t.opts.CRF),
		"-vf", filter,
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", t.opts.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		dst,
	}
}

func (t *Transcoder) run(ctx context.Context, step string, args []string) Outcome {
	logger := logging.WithContext(ctx, t.logger)
	started := time.Now()
	logger.Debug("ffmpeg starting", logging.String("step", step), logging.String("args", strings.Join(args, " ")))

	cmd := commandContext(ctx, t.opts.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()

	outcome := Outcome{Stderr: tail(stderr.String()), Elapsed: time.Since(started)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			outcome.ExitCode = -1
			if outcome.Stderr == "" {
				outcome.Stderr = err.Error()
			}
		}
		logging.WarnWithContext(logger, "ffmpeg failed", "ffmpeg_failed",
			logging.String("step", step),
			logging.Int("exit_code", outcome.ExitCode),
			logging.String("stderr", outcome.Stderr),
			logging.String(logging.FieldErrorHint, "check the input file and the ffmpeg build"),
		)
		return outcome
	}
	logger.Info("ffmpeg step completed",
		logging.String("step", step),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

func tail(s string) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "")
	return textutil.TruncateTail(s, maxDiagnostic)
}
