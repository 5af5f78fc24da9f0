package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
)

const (
	uploadPath      = "/api/uploads"
	eventsPath      = "/api/events"
	transcriptsPath = "/api/transcripts/"
)

// Client talks to the transcription server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a client for the server at baseURL. The default HTTP
// client carries no timeout: the event stream is long-lived and uploads can
// take as long as they take, so callers bound individual calls through ctx.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload streams the file at filePath to the server and returns its receipt.
// onProgress, when non-nil, is called with the upload percentage each time
// it advances; it runs on the request goroutine and must not block.
func (c *Client) Upload(ctx context.Context, filePath string, onProgress ProgressFunc) (domain.UploadReceipt, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	src := newProgressReader(file, info.Size(), onProgress)

	// The body is piped rather than buffered so progress tracks bytes on
	// the wire, not bytes copied into memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.UploadReceipt{}, fmt.Errorf("server rejected upload: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var receipt domain.UploadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("failed to decode upload receipt: %w", err)
	}
	return receipt, nil
}

// Transcript fetches the stored transcript for an object key. Returns
// domain.ErrTranscriptNotFound while the job is still processing.
func (c *Client) Transcript(ctx context.Context, key string) (domain.TranscriptResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+transcriptsPath+escapeKey(key), nil)
	if err != nil {
		return domain.TranscriptResult{}, fmt.Errorf("failed to build transcript request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TranscriptResult{}, fmt.Errorf("transcript request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TranscriptResult{}, fmt.Errorf("failed to read transcript response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.TranscriptResult{}, domain.ErrTranscriptNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return domain.TranscriptResult{}, fmt.Errorf("failed to fetch transcript: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result domain.TranscriptResult
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.TranscriptResult{}, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return result, nil
}

// escapeKey escapes each path segment of an object key, keeping the slashes
// that the transcript route matches on.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
