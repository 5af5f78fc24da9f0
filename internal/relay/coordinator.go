// Package relay ties the status queue to the event stream: it owns the
// poller, the subscriber registry, and the broadcaster, and runs their
// shared lifecycle.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/queue"
)

var shutdownPayload = []byte(`{"message":"server shutting down"}`)

// Coordinator runs the relay: every message received from the status queue
// is fanned out verbatim to all connected subscribers. Shutdown is
// idempotent and drains in order: poller first, then a final shutdown
// event, then every sink is closed.
type Coordinator struct {
	poller      *queue.Poller
	registry    *broadcast.Registry
	broadcaster *broadcast.Broadcaster
	stopWait    time.Duration
	stopOnce    sync.Once
}

// NewCoordinator wires a poller over the status queue into the given
// registry and broadcaster. stopWait bounds how long Shutdown waits for
// the receive loop to finish its current iteration; it should exceed the
// long-poll wait so an in-flight receive can complete and dispatch.
func NewCoordinator(client queue.ReceiverAPI, opts queue.Options, registry *broadcast.Registry, broadcaster *broadcast.Broadcaster, stopWait time.Duration, clock clockwork.Clock) *Coordinator {
	c := &Coordinator{
		registry:    registry,
		broadcaster: broadcaster,
		stopWait:    stopWait,
	}
	c.poller = queue.NewPoller(client, c.relay, opts, clock)
	return c
}

// Run starts consuming the status queue. It returns immediately; the
// receive loop runs in the background.
func (c *Coordinator) Run() {
	c.poller.Start()
}

// Started reports whether the receive loop is running.
func (c *Coordinator) Started() bool {
	return c.poller.Started()
}

// Shutdown stops the relay. A second call does nothing.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.stopOnce.Do(func() {
		c.poller.Stop(c.stopWait)

		notified := c.broadcaster.Send(ctx, broadcast.EventShutdown, shutdownPayload)
		cleared := c.registry.Clear()
		for _, sub := range cleared {
			_ = sub.Sink.Close()
		}

		slog.InfoContext(ctx, "Relay shut down", "notified", notified, "disconnected", len(cleared))
	})
}

// relay hands one status payload to every subscriber. It never fails:
// a payload nobody is listening for is still consumed and deleted, the
// stream is live updates, not store-and-forward.
func (c *Coordinator) relay(ctx context.Context, msg queue.Message) error {
	delivered := c.broadcaster.Broadcast(ctx, msg.Body)
	slog.DebugContext(ctx, "Relayed status message",
		"message_id", msg.MessageID,
		"subscribers", delivered,
	)
	return nil
}
