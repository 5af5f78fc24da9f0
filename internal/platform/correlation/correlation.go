package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type requestKey struct{}
type jobKey struct{}

// NewID returns a short random hex id, unique enough to grep one request's
// log lines out of a day of traffic.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithID returns a context carrying the request correlation id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey{}, id)
}

// ID reports the request correlation id carried by ctx.
func ID(ctx context.Context) (string, bool) {
	return fromContext(ctx, requestKey{})
}

// WithJobID returns a context carrying the transcription job id, so every
// log line emitted while handling a job names it.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobKey{}, jobID)
}

// JobID reports the job id carried by ctx.
func JobID(ctx context.Context) (string, bool) {
	return fromContext(ctx, jobKey{})
}

func fromContext(ctx context.Context, key any) (string, bool) {
	id, ok := ctx.Value(key).(string)
	return id, ok && id != ""
}

// Handler decorates a slog.Handler, stamping each record with the
// correlation and job ids its context carries.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if id, ok := JobID(ctx); ok {
		r.AddAttrs(slog.String("job_id", id))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
