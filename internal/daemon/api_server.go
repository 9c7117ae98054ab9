package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"audiotube/internal/api"
	"audiotube/internal/config"
	"audiotube/internal/logging"
)

const (
	defaultUploadLimit = 20
	maxUploadLimit     = 200
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	app      *fiber.App
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil || !cfg.API.Enabled {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, errors.New("api.bind is required when the status api is enabled")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	app := fiber.New(fiber.Config{
		AppName:               "audiotube",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          srv.handleError,
	})
	app.Use(recover.New())
	app.Use(authMiddleware(strings.TrimSpace(cfg.API.Token)))

	app.Get("/api/health", srv.handleHealth)
	app.Get("/api/status", srv.handleStatus)
	app.Get("/api/uploads", srv.handleUploads)

	srv.app = app
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.app.ShutdownWithTimeout(5 * time.Second)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	_ = s.app.ShutdownWithTimeout(5 * time.Second)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *apiServer) handleStatus(c *fiber.Ctx) error {
	status := s.daemon.Status(c.UserContext())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		Bot:           status.Bot,
		LockFilePath:  status.LockFilePath,
		HistoryDBPath: status.HistoryDBPath,
		Sessions:      api.SessionCounts(status.Sessions),
		ActiveChats:   status.ActiveChats,
		Workers:       api.FromWorkerStats(status.Workers),
		Downloaders:   api.CopyDownloaders(status.Downloaders),
		UploadsOn:     status.UploadsOn,
		UploadStats:   api.UploadStats(status.UploadStats),
		Dependencies:  api.FromDependencies(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(payload)
}

func (s *apiServer) handleUploads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultUploadLimit)
	if limit <= 0 || limit > maxUploadLimit {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxUploadLimit))
	}
	chatID := int64(c.QueryInt("chat", 0))
	if s.daemon.history == nil {
		return c.JSON(api.UploadListResponse{Items: api.FromRecords(nil)})
	}
	records, err := s.daemon.Recent(c.UserContext(), limit, chatID)
	if err != nil {
		return err
	}
	return c.JSON(api.UploadListResponse{Items: api.FromRecords(records)})
}

func (s *apiServer) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api_request_failed",
			logging.String("path", c.Path()),
			logging.Error(err),
		)
	}
	return c.Status(code).JSON(api.ErrorResponse{Error: err.Error()})
}
