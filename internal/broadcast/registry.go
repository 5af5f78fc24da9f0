package broadcast

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
)

// ErrRegistryFull is returned by Add once the subscriber cap is reached.
var ErrRegistryFull = errors.New("subscriber registry is full")

// Registry is the set of connected subscribers. All methods are safe for
// concurrent use. Fan-out never holds the registry lock: the broadcaster
// iterates over a Snapshot, so a slow write cannot block subscriptions.
type Registry struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscriber
	max  int
}

// NewRegistry creates a registry capped at maxSubscribers. A cap of zero or
// less means unlimited.
func NewRegistry(maxSubscribers int) *Registry {
	return &Registry{
		subs: make(map[uuid.UUID]*Subscriber),
		max:  maxSubscribers,
	}
}

// Add registers a subscriber. Returns ErrRegistryFull when the cap is reached.
func (r *Registry) Add(sub *Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.subs) >= r.max {
		metrics.StreamSubscribersTotal.WithLabelValues("rejected").Inc()
		return ErrRegistryFull
	}

	r.subs[sub.ID] = sub
	metrics.StreamSubscribersTotal.WithLabelValues("accepted").Inc()
	r.updateGauges()
	return nil
}

// Remove unregisters a subscriber. Removing an ID that is not present is a
// no-op, so disconnect paths and eviction paths can race safely. Returns
// whether the subscriber was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return false
	}

	delete(r.subs, id)
	r.updateGauges()
	return true
}

// Snapshot returns the current subscribers as a new slice. Mutating the
// registry afterwards does not affect the returned slice.
func (r *Registry) Snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Clear removes every subscriber and returns them so the caller can close
// their sinks.
func (r *Registry) Clear() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.subs = make(map[uuid.UUID]*Subscriber)
	r.updateGauges()
	return out
}

func (r *Registry) updateGauges() {
	metrics.StreamSubscribersCurrent.Set(float64(len(r.subs)))
	if r.max > 0 {
		metrics.StreamCapacityPercent.Set(float64(len(r.subs)) / float64(r.max) * 100)
	}
}
