package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/errors"
)

// connectedPayload is the body of the greeting frame sent to a new subscriber.
type connectedPayload struct {
	SubscriberID string `json:"subscriberId"`
}

// handleEvents turns the request into a server-sent event stream and keeps it
// open until the client disconnects or the relay closes the sink on shutdown.
func (s *Server) handleEvents(c echo.Context) error {
	ctx := c.Request().Context()

	sink := broadcast.NewSSEWriter(c.Response(), c.Response())
	sub := broadcast.NewSubscriber(sink)

	if err := s.registry.Add(sub); err != nil {
		return errors.UnavailableError("event stream is at capacity, try again later")
	}
	defer func() {
		s.registry.Remove(sub.ID)
		_ = sink.Close()
	}()

	greeting, err := json.Marshal(connectedPayload{SubscriberID: sub.ID.String()})
	if err != nil {
		return errors.InternalError("failed to encode connection greeting", err)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	// The response is committed from here on, so failures are logged rather
	// than returned: the error middleware cannot write into an open stream.
	if err := sink.Send(broadcast.EventConnected, greeting); err != nil {
		slog.WarnContext(ctx, "Failed to greet subscriber", "subscriber_id", sub.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Subscriber connected", "subscriber_id", sub.ID, "subscribers", s.registry.Len())

	select {
	case <-ctx.Done():
	case <-sink.Done():
	}

	slog.InfoContext(ctx, "Subscriber disconnected", "subscriber_id", sub.ID)
	return nil
}
