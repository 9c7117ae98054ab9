package config

const (
	defaultConfigPath            = "~/.config/audiotube/config.toml"
	defaultTempDir               = "~/.local/share/audiotube/tmp"
	defaultStateDir              = "~/.local/share/audiotube"
	defaultLogDir                = "~/.local/share/audiotube/logs"
	defaultImageFile             = "~/.config/audiotube/image.jpg"
	defaultSessionFile           = "~/.local/share/audiotube/mtproto.session"
	defaultClientSecrets         = "~/.config/audiotube/client_secrets.json"
	defaultTokenFile             = "~/.config/audiotube/token.json"
	defaultPollTimeout           = 60
	defaultRequestTimeout        = 120
	defaultChatIdleTimeout       = 300
	defaultMaxPasswordAttempts   = 3
	defaultSessionTimeoutSeconds = 6 * 60 * 60
	defaultWorkerConcurrency     = 2
	defaultAria2cPath            = "aria2c"
	defaultAria2cConnections     = 16
	defaultAria2cRetryWait       = 5
	defaultAria2cTimeoutSeconds  = 600
	defaultAria2cMinSplitSize    = "1M"
	defaultLocatorAttempts       = 4
	defaultDirectAttempts        = 6
	defaultFFmpegPath            = "ffmpeg"
	defaultMaxWidth              = 720
	defaultPreset                = "veryfast"
	defaultCRF                   = 28
	defaultAudioBitrate          = "128k"
	defaultUploadDescription     = "Uploaded by bot"
	defaultChunkSizeMB           = 8
	defaultNotifyRequestTimeout  = 10
	defaultAPIBind               = "127.0.0.1:7490"
	defaultHistoryFile           = "history.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	maxAria2cConnections         = 16
	maxCRF                       = 51
	maxTitleCharacters           = 200
)

// MaxTitleCharacters is the longest title accepted before truncation.
const MaxTitleCharacters = maxTitleCharacters

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Telegram: Telegram{
			SessionFile:     defaultSessionFile,
			PollTimeout:     defaultPollTimeout,
			RequestTimeout:  defaultRequestTimeout,
			ChatIdleTimeout: defaultChatIdleTimeout,
		},
		Auth: Auth{
			MaxAttempts: defaultMaxPasswordAttempts,
		},
		Session: Session{
			TimeoutSeconds: defaultSessionTimeoutSeconds,
		},
		Paths: Paths{
			TempDir:   defaultTempDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			ImageFile: defaultImageFile,
		},
		Workers: Workers{
			Concurrency: defaultWorkerConcurrency,
		},
		Downloader: Downloader{
			Aria2cPath:      defaultAria2cPath,
			Connections:     defaultAria2cConnections,
			RetryWait:       defaultAria2cRetryWait,
			TimeoutSeconds:  defaultAria2cTimeoutSeconds,
			MinSplitSize:    defaultAria2cMinSplitSize,
			LocatorAttempts: defaultLocatorAttempts,
			DirectAttempts:  defaultDirectAttempts,
		},
		Transcode: Transcode{
			FFmpegPath:   defaultFFmpegPath,
			MaxWidth:     defaultMaxWidth,
			Preset:       defaultPreset,
			CRF:          defaultCRF,
			AudioBitrate: defaultAudioBitrate,
		},
		YouTube: YouTube{
			Enabled:       true,
			ClientSecrets: defaultClientSecrets,
			TokenFile:     defaultTokenFile,
			Description:   defaultUploadDescription,
			ChunkSizeMB:   defaultChunkSizeMB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Uploads:        true,
			Errors:         true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
