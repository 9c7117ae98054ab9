package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"

	"audiotube/internal/logging"
	"audiotube/internal/services"
)

// ErrNotAuthorized is returned when no usable token has been stored yet.
var ErrNotAuthorized = errors.New("youtube account not authorized; run `audiotube auth youtube`")

// LoadClientConfig reads an installed-app client secrets file.
func LoadClientConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "client secrets", fmt.Sprintf("read %s", path), err)
	}
	cfg, err := google.ConfigFromJSON(data, yt.YoutubeUploadScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "client secrets", "parse client secrets", err)
	}
	return cfg, nil
}

// persistingSource saves every token the wrapped source hands out that
// differs from the last one saved, so refreshed tokens survive restarts.
type persistingSource struct {
	base   oauth2.TokenSource
	store  TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func newPersistingSource(base oauth2.TokenSource, store TokenStore, current *oauth2.Token, logger *slog.Logger) *persistingSource {
	last := ""
	if current != nil {
		last = current.AccessToken
	}
	return &persistingSource{base: base, store: store, logger: logger, last: last}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := p.store.Save(token); err != nil {
			logging.WarnWithContext(p.logger, "refreshed youtube token not saved", "token_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "token will be refreshed again after restart"),
			)
		} else {
			p.last = token.AccessToken
			p.logger.Debug("youtube token refreshed")
		}
	}
	return token, nil
}

// HTTPClient returns an authorized client for the stored token. It never
// starts the interactive flow.
func HTTPClient(ctx context.Context, cfg *oauth2.Config, store TokenStore, logger *slog.Logger) (*http.Client, error) {
	token, err := store.Load()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "token", "load stored token", err)
	}
	if token == nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "token", "no stored token", ErrNotAuthorized)
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "token", "token expired and has no refresh token", ErrNotAuthorized)
	}
	source := newPersistingSource(cfg.TokenSource(ctx, token), store, token, logger)
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}

// AuthorizeOptions configures the interactive consent flow.
type AuthorizeOptions struct {
	// Prompt receives the consent URL the operator must open.
	Prompt func(url string)
	// ListenAddr is the loopback address for the redirect; port 0 picks one.
	ListenAddr string
	Timeout    time.Duration
}

// Authorize runs the installed-app consent flow against a loopback redirect
// and stores the resulting token.
func Authorize(ctx context.Context, cfg *oauth2.Config, store TokenStore, opts AuthorizeOptions, logger *slog.Logger) (*oauth2.Token, error) {
	logger = logging.NewComponentLogger(logger, "youtube-auth")
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	listener, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth redirect: %w", err)
	}

	flow := *cfg
	flow.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())
	state := uuid.NewString()

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)
	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			var cb callback
			switch {
			case query.Get("state") != state:
				cb.err = errors.New("oauth redirect state mismatch")
			case query.Get("error") != "":
				cb.err = fmt.Errorf("oauth consent denied: %s", query.Get("error"))
			case query.Get("code") == "":
				cb.err = errors.New("oauth redirect missing code")
			default:
				cb.code = query.Get("code")
			}
			if cb.err != nil {
				http.Error(w, cb.err.Error(), http.StatusBadRequest)
			} else {
				fmt.Fprintln(w, "Authorization complete. You can close this window.")
			}
			select {
			case results <- cb:
			default:
			}
		}),
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("oauth redirect server stopped", logging.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if opts.Prompt != nil {
		opts.Prompt(authURL)
	}
	logger.Info("waiting for youtube consent", logging.String("redirect", flow.RedirectURL))

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	var cb callback
	select {
	case <-waitCtx.Done():
		return nil, fmt.Errorf("wait for oauth redirect: %w", waitCtx.Err())
	case cb = <-results:
	}
	if cb.err != nil {
		return nil, cb.err
	}

	token, err := flow.Exchange(ctx, cb.code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}
	if err := store.Save(token); err != nil {
		return nil, err
	}
	logger.Info("youtube token stored", logging.Bool("refresh_token", token.RefreshToken != ""))
	return token, nil
}
