package httpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/config"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
)

type uploadService interface {
	Upload(ctx context.Context, fileName, contentType, jobID string, r io.Reader) (storage.Object, error)
}

type transcriptService interface {
	Fetch(ctx context.Context, key string) (domain.TranscriptResult, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	uploads     uploadService
	transcripts transcriptService
	registry    *broadcast.Registry

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, uploads uploadService, transcripts transcriptService, registry *broadcast.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		uploads:      uploads,
		transcripts:  transcripts,
		registry:     registry,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
