package config

import (
	"errors"
	"fmt"
	"strings"
)

var validPresets = map[string]struct{}{
	"ultrafast": {}, "superfast": {}, "veryfast": {}, "faster": {}, "fast": {},
	"medium": {}, "slow": {}, "slower": {}, "veryslow": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if c.Session.TimeoutSeconds <= 0 {
		return errors.New("session.timeout_seconds must be positive")
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		return errors.New("paths.temp_dir must be set")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return errors.New("history.path must be set when history.enabled is true")
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.bot_token is required. Set BOT_TOKEN env var or edit %s (create with 'audiotube config init')", defaultPath)
	}
	if (c.Telegram.APIID != 0) != (strings.TrimSpace(c.Telegram.APIHash) != "") {
		return errors.New("telegram.api_id and telegram.api_hash must be set together")
	}
	if c.Telegram.APIID < 0 {
		return errors.New("telegram.api_id must be positive")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.Password == "" {
		return errors.New("auth.password is required. Set BOT_PASSWORD env var or edit the config file")
	}
	if c.Auth.MaxAttempts < 1 {
		return errors.New("auth.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Concurrency < 1 {
		return errors.New("workers.concurrency must be at least 1")
	}
	if c.Workers.RunTimeoutSeconds < 0 {
		return errors.New("workers.run_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if c.Downloader.Connections > maxAria2cConnections {
		return fmt.Errorf("downloader.connections must be between 1 and %d", maxAria2cConnections)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if _, ok := validPresets[c.Transcode.Preset]; !ok {
		return fmt.Errorf("transcode.preset %q is not a valid x264 preset", c.Transcode.Preset)
	}
	if c.Transcode.CRF < 0 || c.Transcode.CRF > maxCRF {
		return fmt.Errorf("transcode.crf must be between 0 and %d", maxCRF)
	}
	if c.Transcode.MaxWidth < 2 {
		return errors.New("transcode.max_width must be at least 2")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if !c.YouTube.Enabled {
		return nil
	}
	if strings.TrimSpace(c.YouTube.ClientSecrets) == "" {
		return errors.New("youtube.client_secrets must be set when youtube.enabled is true")
	}
	if strings.TrimSpace(c.YouTube.TokenFile) == "" {
		return errors.New("youtube.token_file must be set when youtube.enabled is true")
	}
	return nil
}
