package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"audiotube/internal/fetch"
	"audiotube/internal/logging"
	"audiotube/internal/notifications"
	"audiotube/internal/services"
	"audiotube/internal/session"
)

// MessageSender delivers chat replies.
type MessageSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Downloader fetches a Telegram file to a local path.
type Downloader interface {
	Fetch(ctx context.Context, req fetch.Request) error
}

// RunDispatcher schedules a completed session.
type RunDispatcher interface {
	Dispatch(ctx context.Context, run session.Run)
}

// ToolProbe reports whether the media tool is usable.
type ToolProbe interface {
	Available(ctx context.Context) bool
}

// HandlerDeps are the collaborators of a Handler.
type HandlerDeps struct {
	Machine    *session.Machine
	Downloader Downloader
	Sender     MessageSender
	Dispatcher RunDispatcher
	FFmpeg     ToolProbe
	Alerts     notifications.Service
	TempDir    string
}

// Handler turns classified events into state machine calls and replies.
type Handler struct {
	deps   HandlerDeps
	logger *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(deps HandlerDeps, logger *slog.Logger) *Handler {
	if deps.Alerts == nil {
		deps.Alerts = notifications.Noop()
	}
	return &Handler{deps: deps, logger: logging.NewComponentLogger(logger, "handler")}
}

// Handle processes one event. Expired sessions are swept first, whatever the
// event. A panic is logged and answered with the server error reply.
func (h *Handler) Handle(ctx context.Context, ev Event) {
	ctx = services.WithChatID(ctx, ev.ChatID)
	logger := logging.WithContext(ctx, h.logger)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panic: %v", r)
			logging.ErrorWithContext(logger, "event handler panicked", "handler_panic",
				logging.String("event", ev.Kind.String()),
				logging.Alert("panic"),
				logging.Error(err),
				logging.String("stack", string(debug.Stack())),
			)
			h.fail(ctx, ev.ChatID, err)
		}
	}()

	if expired := h.deps.Machine.Sweep(); len(expired) > 0 {
		logger.Info("expired sessions swept",
			logging.Int("count", len(expired)),
			logging.String(logging.FieldEventType, "sessions_expired"),
		)
	}
	if ev.ChatID == 0 {
		return
	}

	switch ev.Kind {
	case EventCommand:
		h.handleCommand(ctx, logger, ev)
	case EventText:
		h.apply(ctx, ev.ChatID, h.deps.Machine.HandleText(ev.ChatID, ev.Text), "")
	case EventAudio:
		h.handleAudio(ctx, logger, ev)
	default:
		h.reply(ctx, ev.ChatID, session.MsgNotAudio)
	}
}

func (h *Handler) handleCommand(ctx context.Context, logger *slog.Logger, ev Event) {
	switch ev.Command {
	case "start":
		h.reply(ctx, ev.ChatID, h.deps.Machine.Start(ev.ChatID).Reply)
	default:
		logger.Debug("unknown command ignored", logging.String("command", ev.Command))
	}
}

func (h *Handler) handleAudio(ctx context.Context, logger *slog.Logger, ev Event) {
	chatID := ev.ChatID
	if h.deps.FFmpeg != nil && !h.deps.FFmpeg.Available(ctx) {
		logging.WarnWithContext(logger, "audio refused; ffmpeg unavailable", "ffmpeg_missing",
			logging.String(logging.FieldErrorHint, "install ffmpeg or set transcode.ffmpeg_path"),
			logging.String(logging.FieldImpact, "audio was not downloaded"),
		)
		h.reply(ctx, chatID, session.MsgFFmpegMissing)
		return
	}

	ack, proceed := h.deps.Machine.BeginAudio(chatID)
	h.reply(ctx, chatID, ack.Reply)
	if !proceed {
		return
	}

	dest := filepath.Join(h.deps.TempDir, uuid.NewString()+audioExt(ev.Audio))
	if err := h.deps.Downloader.Fetch(ctx, fetch.Request{FileID: ev.Audio.FileID, Dest: dest}); err != nil {
		logging.WarnWithContext(logger, "audio download failed", "download_failed",
			logging.String("input_kind", ev.Audio.Kind),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user must resend the audio"),
		)
		h.reply(ctx, chatID, downloadFailureReply(err))
		return
	}

	out := h.deps.Machine.AttachAudio(chatID, session.Audio{
		Path:       dest,
		Kind:       ev.Audio.Kind,
		SourceName: ev.Audio.SourceName,
	})
	h.apply(ctx, chatID, out, ack.Reply)
}

// apply sends the outcome's reply unless it repeats sent, then dispatches the
// run the transition produced, if any.
func (h *Handler) apply(ctx context.Context, chatID int64, out session.Outcome, sent string) {
	if out.Reply != sent {
		h.reply(ctx, chatID, out.Reply)
	}
	if out.Run != nil {
		h.deps.Dispatcher.Dispatch(ctx, *out.Run)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if text == "" || h.deps.Sender == nil {
		return
	}
	// The sender logs its own give-up.
	_ = h.deps.Sender.Send(ctx, chatID, text)
}

func (h *Handler) fail(ctx context.Context, chatID int64, err error) {
	if chatID != 0 {
		h.reply(ctx, chatID, session.MsgServerError)
	}
	if alertErr := h.deps.Alerts.NotifyError(context.WithoutCancel(ctx), err, "telegram handler"); alertErr != nil {
		h.logger.Debug("error notification failed", logging.Error(alertErr))
	}
}

// downloadFailureReply picks the chat reply for a failed fetch.
func downloadFailureReply(err error) string {
	switch {
	case errors.Is(err, fetch.ErrRetriesExhausted):
		return session.MsgDownloadExhausted
	case errors.Is(err, fetch.ErrLocator):
		return session.MsgLocatorFailed
	case errors.Is(err, services.ErrTransient):
		return session.MsgDownloadFailed
	default:
		return session.ReceiveFailed(err)
	}
}

// audioExt keeps the sender's extension when it looks sane; ffmpeg probes the
// content either way.
func audioExt(ref *AudioRef) string {
	if ref == nil {
		return ".orig"
	}
	ext := strings.ToLower(filepath.Ext(ref.SourceName))
	if len(ext) > 1 && len(ext) <= 6 && !strings.ContainsAny(ext, `/\ `) {
		return ext
	}
	if ref.Kind == "voice" {
		return ".ogg"
	}
	return ".orig"
}
