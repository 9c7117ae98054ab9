package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"audiotube/internal/config"
	"audiotube/internal/daemon"
	"audiotube/internal/history"
	"audiotube/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("audiotube-%s.log", runStamp))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "audiotube-*.log", Keep: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	tg, err := newTelegramClient(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "telegram login failed", "telegram_login_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telegram.bot_token and telegram.api_endpoint"),
		)
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized on telegram", logging.String("bot", tg.Self.UserName))

	var opts []daemon.Option
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logger.Error("open upload history", logging.Error(err))
			return err
		}
		defer store.Close()
		opts = append(opts, daemon.WithHistory(store))
	}

	d, err := daemon.New(cfg, tg, tg.Self.UserName, logger, opts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("audiotube shutting down")
	return nil
}

func newTelegramClient(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	endpoint := strings.TrimSpace(cfg.Telegram.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// Long polls hold the request open for poll_timeout seconds.
	timeout := time.Duration(cfg.Telegram.PollTimeout+cfg.Telegram.RequestTimeout) * time.Second
	return tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, endpoint, &http.Client{Timeout: timeout})
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
