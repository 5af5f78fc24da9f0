package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/config"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/errors"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
)

// --- Mock implementations ---

type mockUploadService struct {
	uploadFn func(ctx context.Context, fileName, contentType, jobID string, r io.Reader) (storage.Object, error)
}

func (m *mockUploadService) Upload(ctx context.Context, fileName, contentType, jobID string, r io.Reader) (storage.Object, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, fileName, contentType, jobID, r)
	}
	return storage.Object{Bucket: "audio", Key: "uploads/1700000000-" + storage.SanitizeFileName(fileName)}, nil
}

type mockTranscriptService struct {
	fetchFn func(ctx context.Context, key string) (domain.TranscriptResult, error)
}

func (m *mockTranscriptService) Fetch(ctx context.Context, key string) (domain.TranscriptResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, key)
	}
	return domain.TranscriptResult{}, domain.ErrTranscriptNotFound
}

// nullSink discards events. Used to occupy registry slots.
type nullSink struct{}

func (nullSink) Send(string, []byte) error { return nil }
func (nullSink) Close() error              { return nil }

// --- Test helpers ---

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo: echo.New(),
		config: &config.Config{
			Port:          "8080",
			CORSOrigins:   "*",
			MaxUploadSize: "256M",
			UploadRate:    100,
			UploadBurst:   100,
		},
		uploads:     &mockUploadService{},
		transcripts: &mockTranscriptService{},
		registry:    broadcast.NewRegistry(16),
		startTime:   time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return srv
}

func withUploads(u uploadService) func(*Server) {
	return func(s *Server) {
		s.uploads = u
	}
}

func withTranscripts(ts transcriptService) func(*Server) {
	return func(s *Server) {
		s.transcripts = ts
	}
}

func withRegistry(r *broadcast.Registry) func(*Server) {
	return func(s *Server) {
		s.registry = r
	}
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfig(mutate func(*config.Config)) func(*Server) {
	return func(s *Server) {
		mutate(s.config)
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return errors.Middleware()(handler)(c)
}

// newUploadRequest builds a multipart POST with a single "file" part.
func newUploadRequest(t *testing.T, fileName, contentType, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

// syncRecorder wraps httptest.ResponseRecorder so a test goroutine can watch
// the body while the events handler goroutine is still streaming into it.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{rec: httptest.NewRecorder()}
}

func (r *syncRecorder) Header() http.Header {
	return r.rec.Header()
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Write(p)
}

func (r *syncRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.WriteHeader(code)
}

func (r *syncRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Flush()
}

func (r *syncRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Body.String()
}

func (r *syncRecorder) Code() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Code
}
