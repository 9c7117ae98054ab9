package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"audiotube/internal/config"
)

const userAgent = "audiotube/1.0"

// Service defines the operator notification surface.
type Service interface {
	NotifyUploadCompleted(ctx context.Context, title, url string) error
	NotifyUploadFailed(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	NotifyDaemonStarted(ctx context.Context, botName string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		uploads:  cfg.Notifications.Uploads,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	uploads  bool
	errors   bool
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, title, url string) error {
	if !n.uploads {
		return nil
	}
	data := payload{
		title:   "audiotube - Uploaded",
		message: fmt.Sprintf("✅ %s\n%s", strings.TrimSpace(title), strings.TrimSpace(url)),
		tags:    []string{"audiotube", "upload", "completed"},
		click:   strings.TrimSpace(url),
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, title, reason string) error {
	if !n.uploads {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "audiotube - Upload Failed",
		message:  fmt.Sprintf("❌ %s: %s", strings.TrimSpace(title), reason),
		tags:     []string{"audiotube", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "audiotube - Error",
		message:  builder.String(),
		tags:     []string{"audiotube", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, botName string) error {
	botName = strings.TrimSpace(botName)
	if botName == "" {
		botName = "bot"
	}
	data := payload{
		title:    "audiotube - Started",
		message:  fmt.Sprintf("Polling Telegram as @%s", strings.TrimPrefix(botName, "@")),
		tags:     []string{"audiotube", "daemon", "started"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "audiotube - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"audiotube", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop returns a Service that drops every notification.
func Noop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) NotifyUploadCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) NotifyDaemonStarted(context.Context, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
