package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"audiotube/internal/logging"
	"audiotube/internal/services"
)

// ErrDisabled is returned by the uploader variant used when uploads are
// turned off in configuration.
var ErrDisabled = errors.New("youtube upload disabled")

const (
	shortURLPrefix   = "https://youtu.be/"
	privacyPublic    = "public"
	defaultChunkSize = 8 * 1024 * 1024
)

// Video describes one upload.
type Video struct {
	Path        string
	Title       string
	Description string
}

// ShortURL builds the canonical short link for a video ID.
func ShortURL(id string) string {
	return shortURLPrefix + id
}

// Options configures the uploader.
type Options struct {
	ClientSecrets string
	TokenFile     string
	Description   string
	ChunkSizeMB   int

	// HTTPClient and Endpoint replace the OAuth client and API endpoint.
	HTTPClient *http.Client
	Endpoint   string
}

// Uploader sends videos to YouTube with a resumable chunked upload.
type Uploader struct {
	opts   Options
	store  TokenStore
	logger *slog.Logger
}

// NewUploader builds an Uploader. Credentials are read per upload so a token
// authorized while the daemon runs is picked up without a restart.
func NewUploader(opts Options, logger *slog.Logger) *Uploader {
	if strings.TrimSpace(opts.Description) == "" {
		opts.Description = "Uploaded by bot"
	}
	return &Uploader{
		opts:   opts,
		store:  NewFileTokenStore(opts.TokenFile),
		logger: logging.NewComponentLogger(logger, "youtube"),
	}
}

// Enabled always reports true for a configured uploader.
func (u *Uploader) Enabled() bool { return true }

// Upload inserts the video as public and not made for kids and returns its
// short URL.
func (u *Uploader) Upload(ctx context.Context, video Video) (string, error) {
	logger := logging.WithContext(ctx, u.logger)
	file, err := os.Open(video.Path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "upload", "open video", video.Path, err)
	}
	defer file.Close()

	service, err := u.service(ctx)
	if err != nil {
		return "", err
	}

	description := video.Description
	if strings.TrimSpace(description) == "" {
		description = u.opts.Description
	}
	insert := service.Videos.Insert([]string{"snippet", "status"}, newVideo(video.Title, description))

	chunk := defaultChunkSize
	if u.opts.ChunkSizeMB > 0 {
		chunk = u.opts.ChunkSizeMB * 1024 * 1024
	}
	sampler := logging.NewProgressSampler(10)
	started := time.Now()
	insert.Media(file, googleapi.ChunkSize(chunk), googleapi.ContentType("video/*")).
		ProgressUpdater(func(current, total int64) {
			if total <= 0 {
				return
			}
			percent := float64(current) / float64(total) * 100
			if sampler.ShouldLog(percent) {
				logger.Info("youtube upload progress",
					logging.Int("percent", int(percent)),
					logging.Int64("bytes", current),
				)
			}
		})

	result, err := insert.Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	if strings.TrimSpace(result.Id) == "" {
		return "", services.Wrap(services.ErrExternalTool, "upload", "videos.insert", "response carried no video id", nil)
	}
	url := ShortURL(result.Id)
	logger.Info("youtube upload completed",
		logging.String("video_id", result.Id),
		logging.String("url", url),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "upload_completed"),
	)
	return url, nil
}

func (u *Uploader) service(ctx context.Context) (*yt.Service, error) {
	opts := make([]option.ClientOption, 0, 2)
	if u.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(u.opts.Endpoint))
	}
	client := u.opts.HTTPClient
	if client == nil {
		if strings.TrimSpace(u.opts.ClientSecrets) == "" || strings.TrimSpace(u.opts.TokenFile) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "upload", "credentials", "client secrets and token file are required", nil)
		}
		cfg, err := LoadClientConfig(u.opts.ClientSecrets)
		if err != nil {
			return nil, err
		}
		client, err = HTTPClient(ctx, cfg, u.store, u.logger)
		if err != nil {
			return nil, err
		}
	}
	opts = append(opts, option.WithHTTPClient(client))
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "client", "create youtube service", err)
	}
	return service, nil
}

// newVideo fills the insert body. The kids declaration is force-sent because
// a false value would otherwise be dropped from the JSON body.
func newVideo(title, description string) *yt.Video {
	return &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       title,
			Description: description,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           privacyPublic,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		detail := fmt.Sprintf("HTTP %d: %s", apiErr.Code, msg)
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return services.Wrap(services.ErrConfiguration, "upload", "videos.insert", detail, err)
		case apiErr.Code >= 500:
			return services.Wrap(services.ErrTransient, "upload", "videos.insert", detail, err)
		default:
			return services.Wrap(services.ErrExternalTool, "upload", "videos.insert", detail, err)
		}
	}
	if services.IsTimeout(err) {
		return services.Wrap(services.ErrTimeout, "upload", "videos.insert", "request timed out", err)
	}
	return services.Wrap(services.ErrExternalTool, "upload", "videos.insert", "", err)
}

// Disabled is the uploader used when uploads are turned off.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Upload(context.Context, Video) (string, error) {
	return "", services.Wrap(services.ErrConfiguration, "upload", "", "uploads are disabled (set youtube.enabled or UPLOAD_TO_YOUTUBE)", ErrDisabled)
}
