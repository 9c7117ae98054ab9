package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// FileTransport resolves file IDs and downloads files over the Bot API file
// endpoint. It satisfies fetch.Transport.
type FileTransport struct {
	api      API
	token    string
	endpoint string
	client   *http.Client
}

// NewFileTransport builds a transport whose downloads are bounded by timeout.
// An empty endpoint uses the public Bot API file endpoint.
func NewFileTransport(api API, token, endpoint string, timeout time.Duration) *FileTransport {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = tgbotapi.FileEndpoint
	}
	return &FileTransport{
		api:      api,
		token:    token,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// FileURL asks Telegram for the file path behind fileID and returns the
// download link. The call cannot be cancelled on the wire; ctx only bounds
// how long the caller waits.
func (t *FileTransport) FileURL(ctx context.Context, fileID string) (string, error) {
	type result struct {
		file tgbotapi.File
		err  error
	}
	done := make(chan result, 1)
	go func() {
		file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
		done <- result{file: file, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("get file: %w", res.err)
		}
		if strings.TrimSpace(res.file.FilePath) == "" {
			return "", errors.New("get file: empty file path")
		}
		return fmt.Sprintf(t.endpoint, t.token, res.file.FilePath), nil
	}
}

// Download streams url into dest. Non-200 responses fail without being
// classified as timeouts.
func (t *FileTransport) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}
