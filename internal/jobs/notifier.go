package jobs

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"audiotube/internal/history"
	"audiotube/internal/logging"
	"audiotube/internal/notifications"
	"audiotube/internal/services"
	"audiotube/internal/session"
	"audiotube/internal/textutil"
)

// deliveryTimeout bounds the terminal message and bookkeeping after a run,
// including during shutdown.
const deliveryTimeout = 30 * time.Second

// maxReasonRunes caps the failure reason in the terminal message so the whole
// message stays well inside Telegram's 4096 character limit.
const maxReasonRunes = 1000

// Sender delivers a chat message.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Finisher tears down the processing session of a finished run.
type Finisher interface {
	Finish(chatID int64, runID string) bool
}

// Ledger records run lifecycles.
type Ledger interface {
	RecordStart(ctx context.Context, start history.Start) error
	RecordFinish(ctx context.Context, finish history.Finish) error
}

// NotifierOption customises Notifier construction.
type NotifierOption func(*Notifier)

// WithLedger records every run in ledger.
func WithLedger(ledger Ledger) NotifierOption {
	return func(n *Notifier) {
		n.ledger = ledger
	}
}

// WithAlerts publishes run outcomes to the operator channel.
func WithAlerts(alerts notifications.Service) NotifierOption {
	return func(n *Notifier) {
		if alerts != nil {
			n.alerts = alerts
		}
	}
}

// Notifier consumes exactly one Result per run, tells the chat, and removes
// the processing session. It is the only component that ends a run's session.
type Notifier struct {
	sender   Sender
	finisher Finisher
	ledger   Ledger
	alerts   notifications.Service
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewNotifier builds a Notifier.
func NewNotifier(sender Sender, finisher Finisher, logger *slog.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:   sender,
		finisher: finisher,
		alerts:   notifications.Noop(),
		logger:   logging.NewComponentLogger(logger, "notifier"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Watch waits for the single result on results in its own goroutine and
// delivers it.
func (n *Notifier) Watch(ctx context.Context, results <-chan Result) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		// The scheduler produces a result even after ctx ends.
		n.Deliver(ctx, <-results)
	}()
}

// Deliver sends the terminal message, removes the session, then records the
// outcome. Delivery continues even when ctx is already cancelled.
func (n *Notifier) Deliver(ctx context.Context, res Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	job := res.Job
	ctx = services.WithRunID(services.WithChatID(ctx, job.ChatID), job.RunID)
	logger := logging.WithContext(ctx, n.logger)

	text := TerminalMessage(res)
	if err := n.sender.Send(ctx, job.ChatID, text); err != nil {
		logging.ErrorWithContext(logger, "terminal message not delivered", "terminal_message_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check Telegram connectivity; the run outcome is in the history ledger"),
		)
	}
	if !n.finisher.Finish(job.ChatID, job.RunID) {
		logger.Warn("processing session already gone",
			logging.String(logging.FieldEventType, "session_missing"),
			logging.String(logging.FieldErrorHint, "session was removed outside the notifier"),
			logging.String(logging.FieldImpact, "none"),
		)
	}

	status := history.Status(services.Outcome(res.Err))
	if res.OK() {
		logger.Info("run delivered",
			logging.String("url", res.URL),
			logging.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
			logging.String(logging.FieldEventType, "run_completed"),
		)
	} else {
		logging.WarnWithContext(logger, "run failed", "run_failed",
			logging.Error(res.Err),
			logging.String("status", string(status)),
			logging.String(logging.FieldImpact, "user told the upload failed"),
		)
	}

	if n.ledger != nil {
		finish := history.Finish{RunID: job.RunID, Status: status, URL: res.URL, At: res.FinishedAt}
		if res.Err != nil {
			finish.Error = services.UserMessage(res.Err)
		}
		if err := n.ledger.RecordFinish(ctx, finish); err != nil {
			logger.Warn("history update failed", logging.Error(err))
		}
	}

	var alertErr error
	if res.OK() {
		alertErr = n.alerts.NotifyUploadCompleted(ctx, job.Title, res.URL)
	} else {
		alertErr = n.alerts.NotifyUploadFailed(ctx, job.Title, services.UserMessage(res.Err))
	}
	if alertErr != nil {
		logger.Debug("operator notification failed", logging.Error(alertErr))
	}
}

// Wait blocks until every watched result has been delivered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// TerminalMessage renders the one message a chat receives when its run ends.
func TerminalMessage(res Result) string {
	if res.OK() {
		return session.UploadSucceeded(res.URL)
	}
	if res.Err == nil {
		return session.UploadFailed("upload returned no video URL")
	}
	reason := strings.ToValidUTF8(services.UserMessage(res.Err), "")
	return session.UploadFailed(textutil.TruncateTail(reason, maxReasonRunes))
}
