package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiotube/internal/logging"
	"audiotube/internal/services"
	"audiotube/internal/transcode"
	"audiotube/internal/youtube"
)

// Transcoder is the ffmpeg surface the runner drives.
type Transcoder interface {
	ToWAV(ctx context.Context, src, dst string) transcode.Outcome
	ToMP3(ctx context.Context, src, dst string) transcode.Outcome
	StillVideo(ctx context.Context, image, audio, dst string) transcode.Outcome
}

// Uploader publishes the rendered video. youtube.Disabled is the variant
// used when uploads are turned off.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, video youtube.Video) (string, error)
}

// Input is the immutable tuple one run consumes. The run owns AudioPath and
// deletes it before returning.
type Input struct {
	RunID     string
	AudioPath string
	Title     string
}

// Options configures artifact locations and upload metadata.
type Options struct {
	ImageFile   string
	WorkDir     string
	Description string
}

// Runner executes decode, encode, compose and upload in order.
type Runner struct {
	transcoder Transcoder
	uploader   Uploader
	opts       Options
	remove     func(string) error
	logger     *slog.Logger
}

// NewRunner builds a Runner. A nil uploader behaves like youtube.Disabled.
func NewRunner(transcoder Transcoder, uploader Uploader, opts Options, logger *slog.Logger) *Runner {
	if uploader == nil {
		uploader = youtube.Disabled{}
	}
	return &Runner{
		transcoder: transcoder,
		uploader:   uploader,
		opts:       opts,
		remove:     os.Remove,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Artifacts lists every file a run may create, original first.
type Artifacts struct {
	Original string
	WAV      string
	MP3      string
	Video    string
}

func (a Artifacts) all() []string {
	return []string{a.Original, a.WAV, a.MP3, a.Video}
}

// ArtifactsFor derives the intermediate paths for in. They live next to the
// original unless a work dir is configured, and are named after the run so
// they never collide with the original.
func (r *Runner) ArtifactsFor(in Input) Artifacts {
	dir := r.opts.WorkDir
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Dir(in.AudioPath)
	}
	stem := strings.TrimSpace(in.RunID)
	if stem == "" {
		base := filepath.Base(in.AudioPath)
		stem = strings.TrimSuffix(base, filepath.Ext(base)) + "-run"
	}
	base := filepath.Join(dir, stem)
	return Artifacts{
		Original: in.AudioPath,
		WAV:      base + ".wav",
		MP3:      base + ".mp3",
		Video:    base + ".mp4",
	}
}

// Run executes the pipeline and returns the uploaded video URL. Every
// artifact, including the original audio, is removed before Run returns on
// both success and failure.
func (r *Runner) Run(ctx context.Context, in Input) (url string, err error) {
	ctx = services.WithRunID(ctx, in.RunID)
	logger := logging.WithContext(ctx, r.logger)
	artifacts := r.ArtifactsFor(in)
	defer r.cleanup(logger, artifacts)

	started := time.Now()
	logger.Info("pipeline started",
		logging.String("title", in.Title),
		logging.String(logging.FieldEventType, "pipeline_started"),
	)

	if strings.TrimSpace(in.AudioPath) == "" {
		return "", services.Wrap(services.ErrValidation, "pipeline", "input", "audio path is empty", nil)
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", services.Wrap(services.ErrValidation, "pipeline", "input", "title is empty", nil)
	}

	if err := r.step(ctx, "wav", func(ctx context.Context) transcode.Outcome {
		return r.transcoder.ToWAV(ctx, artifacts.Original, artifacts.WAV)
	}); err != nil {
		return "", err
	}
	if err := r.step(ctx, "mp3", func(ctx context.Context) transcode.Outcome {
		return r.transcoder.ToMP3(ctx, artifacts.WAV, artifacts.MP3)
	}); err != nil {
		return "", err
	}
	if _, statErr := os.Stat(r.opts.ImageFile); statErr != nil || strings.TrimSpace(r.opts.ImageFile) == "" {
		return "", services.Wrap(services.ErrNotFound, "video", "image", "image file missing: "+r.opts.ImageFile, statErr)
	}
	if err := r.step(ctx, "video", func(ctx context.Context) transcode.Outcome {
		return r.transcoder.StillVideo(ctx, r.opts.ImageFile, artifacts.MP3, artifacts.Video)
	}); err != nil {
		return "", err
	}

	if !r.uploader.Enabled() {
		return "", services.Wrap(services.ErrConfiguration, "upload", "", "UPLOAD_TO_YOUTUBE disabled", youtube.ErrDisabled)
	}
	url, err = r.uploader.Upload(services.WithStage(ctx, "upload"), youtube.Video{
		Path:        artifacts.Video,
		Title:       in.Title,
		Description: r.opts.Description,
	})
	if err != nil {
		return "", err
	}
	logger.Info("pipeline completed",
		logging.String("url", url),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "pipeline_completed"),
	)
	return url, nil
}

func (r *Runner) step(ctx context.Context, stage string, fn func(context.Context) transcode.Outcome) error {
	outcome := fn(services.WithStage(ctx, stage))
	if outcome.OK() {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stage, "ffmpeg", "run exceeded its time limit", ctxErr)
		}
		return ctxErr
	}
	return outcome.Err(stage)
}

func (r *Runner) cleanup(logger *slog.Logger, artifacts Artifacts) {
	for _, path := range artifacts.all() {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := r.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "artifact cleanup failed", "artifact_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file remains in temp dir"),
			)
		}
	}
}
