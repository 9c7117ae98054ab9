package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"audiotube/internal/bot"
	"audiotube/internal/config"
	"audiotube/internal/deps"
	"audiotube/internal/fetch"
	"audiotube/internal/history"
	"audiotube/internal/jobs"
	"audiotube/internal/logging"
	"audiotube/internal/notifications"
	"audiotube/internal/pipeline"
	"audiotube/internal/preflight"
	"audiotube/internal/session"
	"audiotube/internal/transcode"
	"audiotube/internal/youtube"
)

const ffmpegProbeTTL = 5 * time.Minute

// Daemon coordinates the bot, the pipeline pool, and the status API, and
// enforces single-instance execution per state directory.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	botName string

	lockPath string
	lock     *flock.Flock

	store      *session.Store
	machine    *session.Machine
	fetcher    *fetch.Fetcher
	dispatcher *jobs.Dispatcher
	history    *history.Store
	bot        *bot.Bot
	alerts     notifications.Service
	uploader   pipeline.Uploader
	api        *apiServer

	running   atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Bot           string
	StartedAt     time.Time
	LockFilePath  string
	HistoryDBPath string
	Sessions      map[session.State]int
	ActiveChats   int
	Workers       jobs.Stats
	Downloaders   map[string]bool
	UploadsOn     bool
	UploadStats   map[history.Status]int
	Dependencies  []deps.Status
}

// Option customises daemon construction.
type Option func(*options)

type options struct {
	history  *history.Store
	uploader pipeline.Uploader
	alerts   notifications.Service
	peer     fetch.Peer
}

// WithHistory records runs in store. The daemon does not close it.
func WithHistory(store *history.Store) Option {
	return func(o *options) { o.history = store }
}

// WithUploader replaces the YouTube uploader built from config.
func WithUploader(up pipeline.Uploader) Option {
	return func(o *options) { o.uploader = up }
}

// WithAlerts replaces the ntfy service built from config.
func WithAlerts(alerts notifications.Service) Option {
	return func(o *options) { o.alerts = alerts }
}

// WithPeer replaces the MTProto download peer built from config.
func WithPeer(peer fetch.Peer) Option {
	return func(o *options) { o.peer = peer }
}

// New wires every component around api, an authenticated Bot API client.
func New(cfg *config.Config, api bot.API, botName string, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || api == nil || logger == nil {
		return nil, errors.New("daemon requires config, bot api, and logger")
	}
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.alerts == nil {
		o.alerts = notifications.NewService(cfg)
	}
	if o.uploader == nil {
		o.uploader = newUploader(cfg, logger)
	}
	if o.peer == nil {
		o.peer = fetch.NewMTProtoPeer(fetch.MTProtoConfig{
			AppID:       cfg.Telegram.APIID,
			AppHash:     cfg.Telegram.APIHash,
			BotToken:    cfg.Telegram.BotToken,
			SessionFile: cfg.Telegram.SessionFile,
		})
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		botName:  botName,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		history:  o.history,
		alerts:   o.alerts,
		uploader: o.uploader,
	}

	d.store = session.NewStore(cfg.SessionTimeout(), session.WithLogger(logger))
	d.machine = session.NewMachine(d.store, session.MachineConfig{
		Password:    cfg.Auth.Password,
		MaxAttempts: cfg.Auth.MaxAttempts,
		MaxTitle:    config.MaxTitleCharacters,
	}, logger)

	requestTimeout := time.Duration(cfg.Telegram.RequestTimeout) * time.Second
	transport := bot.NewFileTransport(api, cfg.Telegram.BotToken, fileEndpoint(cfg.Telegram.APIEndpoint), requestTimeout)
	d.fetcher = fetch.New(logger,
		fetch.NewAria2Backend(transport, fetch.Aria2Options{
			Binary:          cfg.Downloader.Aria2cPath,
			Connections:     cfg.Downloader.Connections,
			RetryWait:       cfg.Downloader.RetryWait,
			TimeoutSeconds:  cfg.Downloader.TimeoutSeconds,
			MinSplitSize:    cfg.Downloader.MinSplitSize,
			LocatorAttempts: cfg.Downloader.LocatorAttempts,
		}),
		fetch.NewPeerBackend(o.peer),
		fetch.NewDirectBackend(transport, fetch.DirectOptions{
			Attempts:        cfg.Downloader.DirectAttempts,
			LocatorAttempts: cfg.Downloader.LocatorAttempts,
		}),
	)

	transcoder := transcode.New(transcode.Options{
		FFmpegPath:   cfg.Transcode.FFmpegPath,
		MaxWidth:     cfg.Transcode.MaxWidth,
		Preset:       cfg.Transcode.Preset,
		CRF:          cfg.Transcode.CRF,
		AudioBitrate: cfg.Transcode.AudioBitrate,
	}, logger)
	runner := pipeline.NewRunner(transcoder, d.uploader, pipeline.Options{
		ImageFile:   cfg.Paths.ImageFile,
		WorkDir:     cfg.Paths.TempDir,
		Description: cfg.YouTube.Description,
	}, logger)
	scheduler := jobs.NewScheduler(runner, jobs.SchedulerOptions{
		Concurrency: cfg.Workers.Concurrency,
		RunTimeout:  cfg.RunTimeout(),
	}, logger)

	sender := bot.NewSender(api, logger)
	var ledger jobs.Ledger
	if d.history != nil {
		ledger = d.history
	}
	notifier := jobs.NewNotifier(sender, d.machine, logger,
		jobs.WithLedger(ledger),
		jobs.WithAlerts(d.alerts),
	)
	d.dispatcher = jobs.NewDispatcher(scheduler, notifier, ledger, logger)

	handler := bot.NewHandler(bot.HandlerDeps{
		Machine:    d.machine,
		Downloader: d.fetcher,
		Sender:     sender,
		Dispatcher: d.dispatcher,
		FFmpeg:     deps.NewFFmpegProbe(cfg.Transcode.FFmpegPath, ffmpegProbeTTL),
		Alerts:     d.alerts,
		TempDir:    cfg.Paths.TempDir,
	}, logger)
	d.bot = bot.New(api, handler, bot.Options{
		PollTimeout: cfg.Telegram.PollTimeout,
		ChatIdle:    time.Duration(cfg.Telegram.ChatIdleTimeout) * time.Second,
	}, logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

func newUploader(cfg *config.Config, logger *slog.Logger) pipeline.Uploader {
	if !cfg.YouTube.Enabled {
		return youtube.Disabled{}
	}
	return youtube.NewUploader(youtube.Options{
		ClientSecrets: cfg.YouTube.ClientSecrets,
		TokenFile:     cfg.YouTube.TokenFile,
		Description:   cfg.YouTube.Description,
		ChunkSizeMB:   cfg.YouTube.ChunkSizeMB,
	}, logger)
}

// fileEndpoint derives the file download endpoint from a custom Bot API
// endpoint; empty keeps the public one.
func fileEndpoint(apiEndpoint string) string {
	apiEndpoint = strings.TrimSpace(apiEndpoint)
	if apiEndpoint == "" {
		return ""
	}
	return strings.Replace(apiEndpoint, "/bot%s/", "/file/bot%s/", 1)
}

// Start acquires the instance lock and begins polling.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another audiotube daemon instance is already running")
	}

	d.reconcileHistory(ctx)
	d.logPreflight(ctx)

	d.startedAt.Store(time.Now().UnixNano())
	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go func() {
		defer close(d.done)
		if err := d.bot.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "polling loop failed", "polling_failed", logging.Error(err))
		}
	}()

	if err := d.alerts.NotifyDaemonStarted(ctx, d.botName); err != nil {
		d.logger.Debug("startup notification failed", logging.Error(err))
	}
	d.logger.Info("audiotube daemon started",
		logging.String("bot", d.botName),
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.dispatcher.Stats().Capacity),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops polling, waits for in-flight runs to deliver their terminal
// message, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.cancel()
	<-d.done
	d.dispatcher.Wait()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.logger.Info("audiotube daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon if needed and releases the session store, removing
// any audio still held by open sessions.
func (d *Daemon) Close() {
	d.Stop()
	d.store.Close()
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-d.done:
	}
	d.Stop()
	return nil
}

// Done is closed when the polling loop exits.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bot:          d.botName,
		LockFilePath: d.lockPath,
		Sessions:     d.store.CountByState(),
		ActiveChats:  d.bot.Router().Active(),
		Workers:      d.dispatcher.Stats(),
		Downloaders:  d.fetcher.Backends(),
		UploadsOn:    d.uploader.Enabled(),
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
	if ns := d.startedAt.Load(); ns != 0 {
		status.StartedAt = time.Unix(0, ns)
	}
	if d.history != nil {
		status.HistoryDBPath = d.history.Path()
		if stats, err := d.history.Stats(ctx); err == nil {
			status.UploadStats = stats
		}
	}
	return status
}

// Recent returns the latest runs from the ledger, optionally for one chat.
func (d *Daemon) Recent(ctx context.Context, limit int, chatID int64) ([]history.Record, error) {
	if d.history == nil {
		return nil, errors.New("upload history disabled")
	}
	return d.history.Recent(ctx, limit, chatID)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	return SendTestNotification(ctx, d.cfg)
}

// SendTestNotification sends a test message to the configured ntfy topic.
func SendTestNotification(ctx context.Context, cfg *config.Config) (bool, string, error) {
	if cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// reconcileHistory marks runs left running by a previous process.
func (d *Daemon) reconcileHistory(ctx context.Context) {
	if d.history == nil {
		return
	}
	n, err := d.history.MarkInterrupted(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "history reconcile failed", "history_reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale runs stay marked running"),
		)
		return
	}
	if n > 0 {
		logging.WarnWithContext(d.logger, "runs interrupted by previous shutdown", "runs_interrupted",
			logging.Int64("count", n),
			logging.String(logging.FieldErrorHint, "affected users never received a terminal message"),
			logging.String(logging.FieldImpact, "uploads must be resent"),
		)
	}
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, r := range preflight.RunAll(ctx, d.cfg, false) {
		if r.Passed {
			continue
		}
		impact := "pipeline runs will fail"
		if r.Optional {
			impact = "feature degraded"
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
			logging.String(logging.FieldErrorHint, "run `audiotube preflight` for details"),
			logging.String(logging.FieldImpact, impact),
		)
	}
}
