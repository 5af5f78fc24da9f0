package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// checkResult is the per-dependency entry in a probe response.
type checkResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.probeHandler(startupProbeTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.probeHandler(readinessProbeTimeout))
	s.echo.GET("/version", s.handleVersion)
}

// probeHandler builds a handler that runs every registered dependency check
// within the given budget.
func (s *Server) probeHandler(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()
		return s.runHealthChecks(ctx, c)
	}
}

// handleLiveness only proves the process is responsive. Dependency outages
// must not restart the pod, so no checks run here.
func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// runHealthChecks probes every dependency and reports them all, so one
// failing check cannot hide another from the operator.
func (s *Server) runHealthChecks(ctx context.Context, c echo.Context) error {
	checks := make(map[string]checkResult, len(s.healthChecks))
	healthy := true
	for _, hc := range s.healthChecks {
		started := time.Now()
		err := hc.Check(ctx)
		result := checkResult{Status: "ok", Duration: time.Since(started).Round(time.Millisecond).String()}
		if err != nil {
			healthy = false
			result.Status = "failed"
			result.Error = err.Error()
		}
		checks[hc.Name] = result
	}

	status, code := "ready", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	if err := c.JSON(code, map[string]any{"status": status, "checks": checks}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
