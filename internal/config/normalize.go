package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeTelegram(); err != nil {
		return err
	}
	c.normalizeAuth()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownloader()
	c.normalizeTranscode()
	if err := c.normalizeYouTube(); err != nil {
		return err
	}
	c.normalizeNotifications()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeTelegram() error {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	c.Telegram.APIEndpoint = strings.TrimSpace(c.Telegram.APIEndpoint)
	if c.Telegram.APIID == 0 {
		if value, ok := os.LookupEnv("TG_API_ID"); ok && strings.TrimSpace(value) != "" {
			id, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("TG_API_ID: %w", err)
			}
			c.Telegram.APIID = id
		}
	}
	c.Telegram.APIHash = strings.TrimSpace(c.Telegram.APIHash)
	if c.Telegram.APIHash == "" {
		if value, ok := os.LookupEnv("TG_API_HASH"); ok {
			c.Telegram.APIHash = strings.TrimSpace(value)
		}
	}
	var err error
	if strings.TrimSpace(c.Telegram.SessionFile) == "" {
		c.Telegram.SessionFile = defaultSessionFile
	}
	if c.Telegram.SessionFile, err = expandPath(c.Telegram.SessionFile); err != nil {
		return fmt.Errorf("telegram.session_file: %w", err)
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultRequestTimeout
	}
	if c.Telegram.ChatIdleTimeout <= 0 {
		c.Telegram.ChatIdleTimeout = defaultChatIdleTimeout
	}
	return nil
}

// normalizeAuth keeps the password byte-exact apart from surrounding
// whitespace, which chat clients strip from messages anyway.
func (c *Config) normalizeAuth() {
	c.Auth.Password = strings.TrimSpace(c.Auth.Password)
	if c.Auth.Password == "" {
		if value, ok := os.LookupEnv("BOT_PASSWORD"); ok {
			c.Auth.Password = strings.TrimSpace(value)
		}
	}
	if c.Auth.MaxAttempts == 0 {
		c.Auth.MaxAttempts = defaultMaxPasswordAttempts
	}
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("TEMP_DIR"); ok && strings.TrimSpace(value) != "" && c.Paths.TempDir == defaultTempDir {
		c.Paths.TempDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("IMAGE_FILE"); ok && strings.TrimSpace(value) != "" && c.Paths.ImageFile == defaultImageFile {
		c.Paths.ImageFile = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ImageFile, err = expandPath(c.Paths.ImageFile); err != nil {
		return fmt.Errorf("paths.image_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownloader() {
	c.Downloader.Aria2cPath = strings.TrimSpace(c.Downloader.Aria2cPath)
	if value, ok := os.LookupEnv("ARIA2C_PATH"); ok && strings.TrimSpace(value) != "" &&
		(c.Downloader.Aria2cPath == "" || c.Downloader.Aria2cPath == defaultAria2cPath) {
		c.Downloader.Aria2cPath = strings.TrimSpace(value)
	}
	if c.Downloader.Aria2cPath == "" {
		c.Downloader.Aria2cPath = defaultAria2cPath
	}
	if c.Downloader.Connections <= 0 {
		c.Downloader.Connections = defaultAria2cConnections
	}
	if c.Downloader.RetryWait <= 0 {
		c.Downloader.RetryWait = defaultAria2cRetryWait
	}
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = defaultAria2cTimeoutSeconds
	}
	c.Downloader.MinSplitSize = strings.TrimSpace(c.Downloader.MinSplitSize)
	if c.Downloader.MinSplitSize == "" {
		c.Downloader.MinSplitSize = defaultAria2cMinSplitSize
	}
	if c.Downloader.LocatorAttempts <= 0 {
		c.Downloader.LocatorAttempts = defaultLocatorAttempts
	}
	if c.Downloader.DirectAttempts <= 0 {
		c.Downloader.DirectAttempts = defaultDirectAttempts
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegPath = strings.TrimSpace(c.Transcode.FFmpegPath)
	if c.Transcode.FFmpegPath == "" {
		c.Transcode.FFmpegPath = defaultFFmpegPath
	}
	if c.Transcode.MaxWidth <= 0 {
		c.Transcode.MaxWidth = defaultMaxWidth
	}
	c.Transcode.Preset = strings.ToLower(strings.TrimSpace(c.Transcode.Preset))
	if c.Transcode.Preset == "" {
		c.Transcode.Preset = defaultPreset
	}
	c.Transcode.AudioBitrate = strings.TrimSpace(c.Transcode.AudioBitrate)
	if c.Transcode.AudioBitrate == "" {
		c.Transcode.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeYouTube() error {
	if value, ok := os.LookupEnv("UPLOAD_TO_YOUTUBE"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			c.YouTube.Enabled = true
		case "0", "false", "no", "off":
			c.YouTube.Enabled = false
		}
	}
	if value, ok := os.LookupEnv("CLIENT_SECRETS"); ok && strings.TrimSpace(value) != "" && c.YouTube.ClientSecrets == defaultClientSecrets {
		c.YouTube.ClientSecrets = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("YT_TOKEN_FILE"); ok && strings.TrimSpace(value) != "" && c.YouTube.TokenFile == defaultTokenFile {
		c.YouTube.TokenFile = strings.TrimSpace(value)
	}
	var err error
	if c.YouTube.ClientSecrets, err = expandPath(strings.TrimSpace(c.YouTube.ClientSecrets)); err != nil {
		return fmt.Errorf("youtube.client_secrets: %w", err)
	}
	if c.YouTube.TokenFile, err = expandPath(strings.TrimSpace(c.YouTube.TokenFile)); err != nil {
		return fmt.Errorf("youtube.token_file: %w", err)
	}
	c.YouTube.Description = strings.TrimSpace(c.YouTube.Description)
	if c.YouTube.Description == "" {
		c.YouTube.Description = defaultUploadDescription
	}
	if c.YouTube.ChunkSizeMB <= 0 {
		c.YouTube.ChunkSizeMB = defaultChunkSizeMB
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, defaultHistoryFile)
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
