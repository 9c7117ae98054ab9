package jobs

import (
	"context"
	"log/slog"

	"audiotube/internal/history"
	"audiotube/internal/logging"
	"audiotube/internal/services"
	"audiotube/internal/session"
)

// Dispatcher hands runs produced by the state machine to the scheduler and
// wires each result to the notifier.
type Dispatcher struct {
	scheduler *Scheduler
	notifier  *Notifier
	ledger    Ledger
	logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher. ledger may be nil.
func NewDispatcher(scheduler *Scheduler, notifier *Notifier, ledger Ledger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		notifier:  notifier,
		ledger:    ledger,
		logger:    logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Dispatch schedules run and returns at once.
func (d *Dispatcher) Dispatch(ctx context.Context, run session.Run) {
	job := JobFromRun(run)
	if d.ledger != nil {
		err := d.ledger.RecordStart(ctx, history.Start{
			RunID:      job.RunID,
			ChatID:     job.ChatID,
			Title:      job.Title,
			InputKind:  job.InputKind,
			SourceName: job.SourceName,
		})
		if err != nil {
			logger := logging.WithContext(services.WithRunID(ctx, job.RunID), d.logger)
			logger.Warn("history insert failed", logging.Error(err))
		}
	}
	d.notifier.Watch(ctx, d.scheduler.Submit(ctx, job))
}

// Stats reports scheduler occupancy.
func (d *Dispatcher) Stats() Stats {
	return d.scheduler.Stats()
}

// Wait blocks until every dispatched run has been delivered.
func (d *Dispatcher) Wait() {
	d.scheduler.Wait()
	d.notifier.Wait()
}
