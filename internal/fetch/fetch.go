package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"audiotube/internal/logging"
	"audiotube/internal/services"
)

var (
	// ErrLocator marks a failure to turn a file ID into a download URL after
	// every resolution attempt.
	ErrLocator = errors.New("file locator resolution failed")
	// ErrRetriesExhausted marks a download that kept timing out until its
	// retry budget ran out.
	ErrRetriesExhausted = errors.New("download retries exhausted")
	// ErrUnavailable marks a backend that is not configured on this host.
	ErrUnavailable = errors.New("backend not configured")
)

// Request names the remote file and where it must land.
type Request struct {
	FileID string
	Dest   string
}

// Backend is one download strategy.
type Backend interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context, req Request) error
}

// Resolver turns a Telegram file ID into a fetchable URL.
type Resolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Transport is the Bot API surface the direct backend needs.
type Transport interface {
	Resolver
	Download(ctx context.Context, url, dest string) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Attempt records one backend failure.
type Attempt struct {
	Backend string
	Err     error
}

// Fetcher tries backends in order until one produces the file.
type Fetcher struct {
	backends []Backend
	logger   *slog.Logger
}

// New builds a Fetcher over backends in priority order.
func New(logger *slog.Logger, backends ...Backend) *Fetcher {
	return &Fetcher{
		backends: backends,
		logger:   logging.NewComponentLogger(logger, "fetch"),
	}
}

// Backends returns the names of the configured backends and whether each is
// available.
func (f *Fetcher) Backends() map[string]bool {
	out := make(map[string]bool, len(f.backends))
	for _, b := range f.backends {
		out[b.Name()] = b.Available()
	}
	return out
}

// Fetch downloads req.FileID to req.Dest. The first backend that succeeds
// wins. Whatever a failed backend left at req.Dest is removed before the next
// one runs, and nothing remains at req.Dest when Fetch returns an error.
func (f *Fetcher) Fetch(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.FileID) == "" || strings.TrimSpace(req.Dest) == "" {
		return services.Wrap(services.ErrValidation, "fetch", "request", "file id and destination are required", nil)
	}
	logger := logging.WithContext(ctx, f.logger)

	var attempts []Attempt
	for _, backend := range f.backends {
		if !backend.Available() {
			logger.Debug("download backend skipped", logging.String("backend", backend.Name()))
			continue
		}
		started := time.Now()
		err := backend.Fetch(ctx, req)
		if err == nil {
			err = verifyFile(req.Dest)
		}
		if err == nil {
			logger.Info("audio downloaded",
				logging.String("backend", backend.Name()),
				logging.Duration("elapsed", time.Since(started)),
				logging.String(logging.FieldEventType, "download_completed"),
			)
			return nil
		}
		removePartial(logger, req.Dest)
		attempts = append(attempts, Attempt{Backend: backend.Name(), Err: err})
		logging.WarnWithContext(logger, "download backend failed; trying next", "download_backend_failed",
			logging.String("backend", backend.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "falling back to the next download strategy"),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return newFailure(attempts)
}

func newFailure(attempts []Attempt) error {
	if len(attempts) == 0 {
		return services.Wrap(services.ErrConfiguration, "fetch", "", "no download backend available", nil)
	}
	errs := make([]error, 0, len(attempts))
	names := make([]string, 0, len(attempts))
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Backend, a.Err))
		names = append(names, a.Backend)
	}
	return services.Wrap(services.ErrTransient, "fetch", strings.Join(names, ","), "all download backends failed", errors.Join(errs...))
}

func verifyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("downloaded path %s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("downloaded file %s is empty", path)
	}
	return nil
}

func removePartial(logger *slog.Logger, path string) {
	for _, candidate := range []string{path, path + partSuffix, path + partSuffix + ".aria2"} {
		if err := os.Remove(candidate); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "partial download cleanup failed", "download_cleanup_failed",
				logging.String("path", candidate),
				logging.Error(err),
				logging.String(logging.FieldImpact, "partial file remains in temp dir"),
			)
		}
	}
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
