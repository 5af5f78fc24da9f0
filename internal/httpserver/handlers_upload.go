package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/correlation"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/errors"
)

// audioExtensions is the upload allow-list. Whisper decodes more formats
// than these, but everything outside the list is almost certainly a wrong
// file picked by accident.
var audioExtensions = map[string]struct{}{
	".aac":  {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".wav":  {},
	".webm": {},
}

func (s *Server) handleUpload(c echo.Context) error {
	start := time.Now()

	file, err := c.FormFile("file")
	if err != nil {
		return errors.ValidationError("multipart field 'file' is required")
	}
	if err := validateAudioFileName(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return errors.InternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	jobID := uuid.NewString()
	ctx := correlation.WithJobID(c.Request().Context(), jobID)

	obj, err := s.uploads.Upload(ctx, file.Filename, file.Header.Get(echo.HeaderContentType), jobID, src)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return errors.InternalError("failed to store upload", err).WithContext("filename", file.Filename)
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadBytes.Add(float64(file.Size))
	metrics.UploadDuration.Observe(time.Since(start).Seconds())

	slog.InfoContext(ctx, "Upload stored", "key", obj.Key, "size_bytes", file.Size)

	return c.JSON(http.StatusOK, domain.UploadReceipt{
		FileName: file.Filename,
		Key:      obj.Key,
		JobID:    jobID,
	})
}

func validateAudioFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := audioExtensions[ext]; !ok {
		return errors.ValidationError(fmt.Sprintf("unsupported file type %q, expected one of: %s", ext, allowedExtensionList()))
	}
	return nil
}

func allowedExtensionList() string {
	exts := make([]string, 0, len(audioExtensions))
	for ext := range audioExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
