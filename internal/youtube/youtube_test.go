package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"audiotube/internal/logging"
	"audiotube/internal/services"
)

func TestFileTokenStoreLoadMissingFile(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "missing.json"))
	token, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != nil {
		t.Fatalf("expected nil token, got %#v", token)
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewFileTokenStore(path)
	expiry := time.Now().Add(time.Hour).Round(time.Second)

	if err := store.Save(&oauth2.Token{AccessToken: "access", TokenType: "Bearer", RefreshToken: "refresh", Expiry: expiry}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" || !got.Expiry.Equal(expiry) {
		t.Fatalf("unexpected token %#v", got)
	}
}

func TestFileTokenStoreReadsAuthorizedUserLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	data := `{"token": "ya29.old", "refresh_token": "1//refresh", "client_id": "id", "scopes": ["https://www.googleapis.com/auth/youtube.upload"], "expiry": "2024-01-02T03:04:05Z"}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileTokenStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "ya29.old" || got.RefreshToken != "1//refresh" || got.TokenType != "Bearer" {
		t.Fatalf("unexpected token %#v", got)
	}
}

type uploadRecorder struct {
	mu    sync.Mutex
	body  string
	query url.Values
	path  string
}

func newUploadServer(t *testing.T, status int, response string) (*httptest.Server, *uploadRecorder) {
	t.Helper()
	rec := &uploadRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.body = string(data)
		rec.query = r.URL.Query()
		rec.path = r.URL.Path
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("fake mp4 payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadSendsPublicNotForKids(t *testing.T) {
	srv, rec := newUploadServer(t, http.StatusOK, `{"id":"dQw4w9WgXcQ"}`)
	uploader := NewUploader(Options{HTTPClient: srv.Client(), Endpoint: srv.URL + "/"}, logging.NewNop())

	url, err := uploader.Upload(context.Background(), Video{Path: writeVideo(t), Title: "My Song"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatalf("unexpected url %q", url)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !strings.Contains(rec.path, "videos") {
		t.Fatalf("unexpected request path %q", rec.path)
	}
	parts := strings.Join(rec.query["part"], ",")
	if !strings.Contains(parts, "snippet") || !strings.Contains(parts, "status") {
		t.Fatalf("unexpected part %q", parts)
	}
	for _, want := range []string{`"privacyStatus":"public"`, `"selfDeclaredMadeForKids":false`, `"title":"My Song"`, `"description":"Uploaded by bot"`} {
		if !strings.Contains(rec.body, want) {
			t.Fatalf("expected %s in request body %q", want, rec.body)
		}
	}
}

func TestUploadMapsAPIErrors(t *testing.T) {
	srv, _ := newUploadServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"quotaExceeded"}}`)
	uploader := NewUploader(Options{HTTPClient: srv.Client(), Endpoint: srv.URL + "/"}, logging.NewNop())

	_, err := uploader.Upload(context.Background(), Video{Path: writeVideo(t), Title: "x"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(services.UserMessage(err), "quotaExceeded") {
		t.Fatalf("expected api message in %q", services.UserMessage(err))
	}
}

func TestUploadMissingFile(t *testing.T) {
	uploader := NewUploader(Options{HTTPClient: http.DefaultClient}, logging.NewNop())
	_, err := uploader.Upload(context.Background(), Video{Path: filepath.Join(t.TempDir(), "none.mp4")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadWithoutTokenIsMisconfigured(t *testing.T) {
	dir := t.TempDir()
	secrets := writeClientSecrets(t, dir, "http://127.0.0.1/token")
	uploader := NewUploader(Options{ClientSecrets: secrets, TokenFile: filepath.Join(dir, "token.json")}, logging.NewNop())

	_, err := uploader.Upload(context.Background(), Video{Path: writeVideo(t), Title: "x"})
	if !errors.Is(err, ErrNotAuthorized) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected not authorized configuration error, got %v", err)
	}
}

func TestDisabledUploader(t *testing.T) {
	var d Disabled
	if d.Enabled() {
		t.Fatal("expected disabled")
	}
	if _, err := d.Upload(context.Background(), Video{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func writeClientSecrets(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	payload := map[string]any{
		"installed": map[string]any{
			"client_id":     "client-id.apps.googleusercontent.com",
			"client_secret": "secret",
			"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
			"token_uri":     tokenURL,
			"redirect_uris": []string{"http://localhost"},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "client_secrets.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClientConfig(t *testing.T) {
	cfg, err := LoadClientConfig(writeClientSecrets(t, t.TempDir(), "https://oauth2.googleapis.com/token"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClientID != "client-id.apps.googleusercontent.com" {
		t.Fatalf("unexpected client id %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || !strings.HasSuffix(cfg.Scopes[0], "youtube.upload") {
		t.Fatalf("unexpected scopes %v", cfg.Scopes)
	}

	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAuthorizeStoresToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "consent-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"fresh","refresh_token":"keep","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokenSrv.URL},
		Scopes:       []string{"scope"},
	}
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

	prompt := func(authURL string) {
		parsed, err := url.Parse(authURL)
		if err != nil {
			t.Errorf("parse auth url: %v", err)
			return
		}
		q := parsed.Query()
		if q.Get("access_type") != "offline" {
			t.Errorf("expected offline access, got %q", q.Get("access_type"))
		}
		redirect := q.Get("redirect_uri") + "?state=" + url.QueryEscape(q.Get("state")) + "&code=consent-code"
		go func() {
			resp, err := http.Get(redirect)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	token, err := Authorize(context.Background(), cfg, store, AuthorizeOptions{Prompt: prompt, Timeout: 10 * time.Second}, logging.NewNop())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if token.AccessToken != "fresh" {
		t.Fatalf("unexpected token %#v", token)
	}
	saved, err := store.Load()
	if err != nil || saved == nil || saved.RefreshToken != "keep" {
		t.Fatalf("expected stored token, got %#v err=%v", saved, err)
	}
}

type sequenceSource struct {
	tokens []string
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{AccessToken: s.tokens[s.i], TokenType: "Bearer", RefreshToken: "r"}
	if s.i < len(s.tokens)-1 {
		s.i++
	}
	return tok, nil
}

type countingStore struct {
	saved []string
}

func (c *countingStore) Load() (*oauth2.Token, error) { return nil, nil }

func (c *countingStore) Save(tok *oauth2.Token) error {
	c.saved = append(c.saved, tok.AccessToken)
	return nil
}

func TestPersistingSourceSavesOnlyChangedTokens(t *testing.T) {
	store := &countingStore{}
	src := newPersistingSource(&sequenceSource{tokens: []string{"a", "a", "b", "b"}}, store, &oauth2.Token{AccessToken: "a"}, logging.NewNop())
	for range 4 {
		if _, err := src.Token(); err != nil {
			t.Fatal(err)
		}
	}
	if len(store.saved) != 1 || store.saved[0] != "b" {
		t.Fatalf("expected only refreshed token saved, got %v", store.saved)
	}
}
