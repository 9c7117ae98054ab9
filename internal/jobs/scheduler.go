package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"audiotube/internal/logging"
	"audiotube/internal/pipeline"
	"audiotube/internal/services"
	"audiotube/internal/session"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (string, error)
}

// Job is the immutable tuple a worker receives. Workers never see the
// session store.
type Job struct {
	RunID       string
	ChatID      int64
	AudioPath   string
	Title       string
	InputKind   string
	SourceName  string
	SubmittedAt time.Time
}

// JobFromRun converts the run handed out by the state machine.
func JobFromRun(run session.Run) Job {
	return Job{
		RunID:      run.ID,
		ChatID:     run.ChatID,
		AudioPath:  run.AudioPath,
		Title:      run.Title,
		InputKind:  run.InputKind,
		SourceName: run.SourceName,
	}
}

// Result is the typed completion value of one job.
type Result struct {
	Job        Job
	URL        string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the run produced a URL.
func (r Result) OK() bool {
	return r.Err == nil && r.URL != ""
}

// Stats describes the pool at a point in time.
type Stats struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Queued   int `json:"queued"`
}

// SchedulerOptions configures the worker pool.
type SchedulerOptions struct {
	Concurrency int
	// RunTimeout bounds one run; zero disables the limit.
	RunTimeout time.Duration
}

// Scheduler runs jobs off the event path on a bounded pool. Jobs beyond the
// pool size wait for a free slot; the order in which waiting jobs start is not
// guaranteed.
type Scheduler struct {
	runner   Runner
	sem      *semaphore.Weighted
	capacity int
	timeout  time.Duration
	remove   func(string) error
	logger   *slog.Logger

	wg     sync.WaitGroup
	active atomic.Int64
	queued atomic.Int64
}

// NewScheduler builds a Scheduler; concurrency below one becomes two.
func NewScheduler(runner Runner, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 2
	}
	return &Scheduler{
		runner:   runner,
		sem:      semaphore.NewWeighted(int64(opts.Concurrency)),
		capacity: opts.Concurrency,
		timeout:  opts.RunTimeout,
		remove:   os.Remove,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Submit queues job and returns a channel that receives exactly one Result.
// Submit never blocks.
func (s *Scheduler) Submit(ctx context.Context, job Job) <-chan Result {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	results := make(chan Result, 1)
	s.queued.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		results <- s.execute(ctx, job)
	}()
	return results
}

func (s *Scheduler) execute(ctx context.Context, job Job) (res Result) {
	ctx = services.WithRunID(services.WithChatID(ctx, job.ChatID), job.RunID)
	logger := logging.WithContext(ctx, s.logger)
	res = Result{Job: job}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.queued.Add(-1)
		s.discard(logger, job.AudioPath)
		res.Err = services.Wrap(services.ErrTransient, "schedule", "", "daemon stopped before the run started", err)
		res.FinishedAt = time.Now()
		return res
	}
	s.queued.Add(-1)
	s.active.Add(1)
	defer func() {
		s.active.Add(-1)
		s.sem.Release(1)
	}()

	res.StartedAt = time.Now()
	logger.Info("run started",
		logging.Duration("queued_for", res.StartedAt.Sub(job.SubmittedAt)),
		logging.String(logging.FieldEventType, "run_started"),
	)

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "pipeline panicked", "run_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the stack trace; the run was failed"),
			)
			res.URL = ""
			res.Err = services.Wrap(services.ErrTransient, "pipeline", "", fmt.Sprintf("internal error: %v", r), nil)
			res.FinishedAt = time.Now()
		}
	}()

	res.URL, res.Err = s.runner.Run(runCtx, pipeline.Input{
		RunID:     job.RunID,
		AudioPath: job.AudioPath,
		Title:     job.Title,
	})
	res.FinishedAt = time.Now()
	return res
}

func (s *Scheduler) discard(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "queued audio cleanup failed", "audio_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file remains in temp dir"),
		)
	}
}

// Stats returns the current pool occupancy.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Capacity: s.capacity,
		Active:   int(s.active.Load()),
		Queued:   int(s.queued.Load()),
	}
}

// Wait blocks until every submitted job has produced its result.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
