package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStreamEnded is returned by Listen when the server closes the event
// stream. Subscriber state is not replayed, so a caller that reconnects
// starts from a clean slate.
var ErrStreamEnded = errors.New("event stream ended")

// maxEventSize bounds a single stream line. Completed events inline the
// whole transcript.
const maxEventSize = 1 << 20

// EventFunc receives one decoded stream event.
type EventFunc func(event string, data []byte)

// Listen subscribes to the server's event stream and dispatches each frame
// to onEvent until ctx is canceled or the server closes the stream. A
// cancellation returns nil; a server-side close returns ErrStreamEnded.
func (c *Client) Listen(ctx context.Context, onEvent EventFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+eventsPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("event stream refused: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var event string
	var data [][]byte
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event != "" || len(data) > 0 {
				onEvent(event, bytes.Join(data, []byte("\n")))
				event, data = "", nil
			}
			continue
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			name, value = line, ""
		}
		if name == "" {
			// Comment line, typically a keep-alive.
			continue
		}
		value = strings.TrimPrefix(value, " ")
		switch name {
		case "event":
			event = value
		case "data":
			data = append(data, []byte(value))
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream read failed: %w", err)
	}
	return ErrStreamEnded
}
