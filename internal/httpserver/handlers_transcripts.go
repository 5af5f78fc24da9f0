package httpserver

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/errors"
)

// handleTranscript serves the stored transcript document for an uploaded
// object key. Returns 404 until the worker has finished the job.
func (s *Server) handleTranscript(c echo.Context) error {
	key := c.Param("*")
	if key == "" {
		return errors.ValidationError("object key is required")
	}

	result, err := s.transcripts.Fetch(c.Request().Context(), key)
	if err != nil {
		if stderrors.Is(err, domain.ErrTranscriptNotFound) {
			return errors.NotFoundError("no transcript for this key yet").WithContext("key", key)
		}
		return errors.ExternalError("failed to fetch transcript", err).WithContext("key", key)
	}

	return c.JSON(http.StatusOK, result)
}
