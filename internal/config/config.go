package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Telegram contains bot transport settings and the optional MTProto credentials
// used by the peer download fallback.
type Telegram struct {
	BotToken        string `toml:"bot_token"`
	APIEndpoint     string `toml:"api_endpoint"`
	APIID           int    `toml:"api_id"`
	APIHash         string `toml:"api_hash"`
	SessionFile     string `toml:"session_file"`
	PollTimeout     int    `toml:"poll_timeout"`
	RequestTimeout  int    `toml:"request_timeout"`
	ChatIdleTimeout int    `toml:"chat_idle_timeout"`
}

// Auth contains the shared password gate.
type Auth struct {
	Password    string `toml:"password"`
	MaxAttempts int    `toml:"max_attempts"`
}

// Session controls how long a waiting session may stay idle.
type Session struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Paths contains directory and asset locations.
type Paths struct {
	TempDir   string `toml:"temp_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	ImageFile string `toml:"image_file"`
}

// Workers contains pipeline concurrency settings.
type Workers struct {
	Concurrency       int `toml:"concurrency"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"` // 0 disables
}

// Downloader contains aria2c and retry settings for the file fetcher.
type Downloader struct {
	Aria2cPath      string `toml:"aria2c_path"`
	Connections     int    `toml:"connections"`
	RetryWait       int    `toml:"retry_wait"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MinSplitSize    string `toml:"min_split_size"`
	LocatorAttempts int    `toml:"locator_attempts"`
	DirectAttempts  int    `toml:"direct_attempts"`
}

// Transcode contains ffmpeg settings for the still-image video.
type Transcode struct {
	FFmpegPath   string `toml:"ffmpeg_path"`
	MaxWidth     int    `toml:"max_width"`
	Preset       string `toml:"preset"`
	CRF          int    `toml:"crf"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// YouTube contains upload credentials and metadata defaults.
type YouTube struct {
	Enabled       bool   `toml:"enabled"`
	ClientSecrets string `toml:"client_secrets"`
	TokenFile     string `toml:"token_file"`
	Description   string `toml:"description"`
	ChunkSizeMB   int    `toml:"chunk_size_mb"`
}

// Notifications contains configuration for ntfy operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Uploads        bool   `toml:"uploads"`
	Errors         bool   `toml:"errors"`
}

// API contains the read-only status server settings.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

// History controls the upload ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for audiotube.
//
// Configuration sections by subsystem:
//   - Telegram: bot token, polling, MTProto fallback credentials
//   - Auth: shared password and attempt limit
//   - Session: idle expiry for waiting sessions
//   - Paths: temp, state, and log directories plus the cover image
//   - Workers: pipeline pool size and optional run timeout
//   - Downloader: aria2c flags and Bot API retry budgets
//   - Transcode: ffmpeg binary and video encoding knobs
//   - YouTube: OAuth files and upload metadata
//   - Notifications: ntfy push notification settings
//   - API: status server bind address and token
//   - History: upload ledger database
//   - Logging: log format, level, and retention
type Config struct {
	Telegram      Telegram      `toml:"telegram"`
	Auth          Auth          `toml:"auth"`
	Session       Session       `toml:"session"`
	Paths         Paths         `toml:"paths"`
	Workers       Workers       `toml:"workers"`
	Downloader    Downloader    `toml:"downloader"`
	Transcode     Transcode     `toml:"transcode"`
	YouTube       YouTube       `toml:"youtube"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory or next to the config file is loaded first so the
// environment fallbacks see its values. The returned config has all path
// fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audiotube.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionTimeout returns the idle expiry for waiting sessions.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}

// RunTimeout returns the per-run pipeline deadline, zero when disabled.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Workers.RunTimeoutSeconds) * time.Second
}

// PeerConfigured reports whether MTProto credentials are present.
func (c *Config) PeerConfigured() bool {
	return c.Telegram.APIID != 0 && strings.TrimSpace(c.Telegram.APIHash) != ""
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "audiotube.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "audiotube.pid")
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
