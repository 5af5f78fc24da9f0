package broadcast

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEWriter writes server-sent event frames to an HTTP response and flushes
// after each frame so events reach the client immediately. Done is closed
// when the sink is closed, which lets the connection handler unblock.
type SSEWriter struct {
	w io.Writer
	f http.Flusher

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSSEWriter creates a sink over the given response writer and flusher.
func NewSSEWriter(w io.Writer, f http.Flusher) *SSEWriter {
	return &SSEWriter{
		w:      w,
		f:      f,
		closed: make(chan struct{}),
	}
}

// Send writes one event frame. Payloads containing newlines are split into
// multiple data lines per the SSE framing rules, so an arbitrary payload can
// never corrupt the stream.
func (s *SSEWriter) Send(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}

	var frame bytes.Buffer
	fmt.Fprintf(&frame, "event: %s\n", event)
	for _, line := range bytes.Split(data, []byte("\n")) {
		fmt.Fprintf(&frame, "data: %s\n", line)
	}
	frame.WriteByte('\n')

	if _, err := s.w.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("failed to write event frame: %w", err)
	}
	s.f.Flush()
	return nil
}

// Close marks the sink closed. Idempotent; subsequent Sends fail with
// ErrSinkClosed.
func (s *SSEWriter) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Done is closed once the sink has been closed.
func (s *SSEWriter) Done() <-chan struct{} {
	return s.closed
}
