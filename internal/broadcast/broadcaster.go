package broadcast

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
)

// Broadcaster fans payloads out to every registered subscriber, one write
// at a time. Writes go to a snapshot of the registry, so subscribers that
// connect mid-broadcast see the next payload instead of a partial one.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		clock:    clock,
	}
}

// Broadcast relays a raw status payload to all current subscribers as a
// "message" event. The payload is forwarded verbatim. Returns the number of
// subscribers the payload was delivered to.
func (b *Broadcaster) Broadcast(ctx context.Context, payload []byte) int {
	return b.Send(ctx, EventMessage, payload)
}

// Send writes the named event to all current subscribers. A subscriber whose
// write fails is removed from the registry and closed; delivery to the
// remaining subscribers continues.
func (b *Broadcaster) Send(ctx context.Context, event string, payload []byte) int {
	start := b.clock.Now()
	defer func() {
		metrics.StreamBroadcastDuration.Observe(b.clock.Since(start).Seconds())
	}()

	delivered := 0
	for _, sub := range b.registry.Snapshot() {
		if err := sub.Sink.Send(event, payload); err != nil {
			slog.WarnContext(ctx, "Evicting subscriber after failed write",
				"subscriber_id", sub.ID.String(),
				"event", event,
				"error", err,
			)
			b.registry.Remove(sub.ID)
			_ = sub.Sink.Close()
			metrics.StreamWriteFailures.Inc()
			continue
		}
		delivered++
		metrics.StreamMessagesSent.Inc()
	}

	return delivered
}
