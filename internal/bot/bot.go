package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"audiotube/internal/logging"
)

// Options configures the polling loop.
type Options struct {
	PollTimeout int
	ChatIdle    time.Duration
}

// Bot long-polls Telegram and feeds classified events to the handler, one
// ordered queue per chat.
type Bot struct {
	api     API
	handler *Handler
	router  *Router
	opts    Options
	logger  *slog.Logger
}

// New builds a Bot.
func New(api API, handler *Handler, opts Options, logger *slog.Logger) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30
	}
	return &Bot{
		api:     api,
		handler: handler,
		router:  NewRouter(handler.Handle, opts.ChatIdle, logger),
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "bot"),
	}
}

// Router exposes the per-chat dispatcher.
func (b *Bot) Router() *Router {
	return b.router
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight chat handlers to return.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.opts.PollTimeout
	cfg.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(cfg)
	b.logger.Info("polling for updates",
		logging.Int("poll_timeout", b.opts.PollTimeout),
		logging.String(logging.FieldEventType, "polling_started"),
	)

	defer b.router.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("polling stopped", logging.String(logging.FieldEventType, "polling_stopped"))
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev := Classify(update)
			if ev.ChatID == 0 {
				b.handler.Handle(ctx, ev)
				continue
			}
			b.router.Route(ctx, ev)
		}
	}
}
