package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"audiotube/internal/fetch"
	"audiotube/internal/logging"
	"audiotube/internal/services"
)

const (
	sendAttempts = 3
	sendStep     = 1500 * time.Millisecond
)

// Sender delivers chat messages, retrying transient failures.
type Sender struct {
	api      API
	attempts int
	step     time.Duration
	sleep    fetch.Sleeper
	logger   *slog.Logger
}

// SenderOption customises a Sender.
type SenderOption func(*Sender)

// WithSendSleeper replaces the wait between attempts.
func WithSendSleeper(sleep fetch.Sleeper) SenderOption {
	return func(s *Sender) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSender builds a Sender that tries each message three times, waiting
// 1.5s × attempt between tries.
func NewSender(api API, logger *slog.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		api:      api,
		attempts: sendAttempts,
		step:     sendStep,
		sleep:    fetch.SleepContext,
		logger:   logging.NewComponentLogger(logger, "sender"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send delivers text to chatID. Empty text is a no-op.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Debug("send attempt failed",
			logging.ChatID(chatID),
			logging.Int("attempt", attempt),
			logging.Error(lastErr),
		)
		if attempt == s.attempts {
			break
		}
		if err := s.sleep(ctx, time.Duration(attempt)*s.step); err != nil {
			return services.Wrap(services.ErrTransient, "bot", "send message", "cancelled while retrying", err)
		}
	}
	logging.WarnWithContext(s.logger, "message delivery failed", "send_failed",
		logging.ChatID(chatID),
		logging.Int("attempts", s.attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "check network connectivity to api.telegram.org"),
	)
	return services.Wrap(services.ErrTransient, "bot", "send message", fmt.Sprintf("gave up after %d attempts", s.attempts), lastErr)
}
