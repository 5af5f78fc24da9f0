package broadcast

import (
	"errors"

	"github.com/google/uuid"
)

// Event names used on the wire.
const (
	// EventConnected confirms a new subscription and carries the subscriber ID.
	EventConnected = "connected"
	// EventMessage carries a status payload relayed from the queue.
	EventMessage = "message"
	// EventShutdown tells subscribers the server is going away.
	EventShutdown = "shutdown"
)

// ErrSinkClosed is returned by Send after a sink has been closed.
var ErrSinkClosed = errors.New("sink closed")

// Sink is the write side of a subscription. Implementations must be safe
// for concurrent use: the broadcaster and the connection handler may touch
// the same sink from different goroutines.
type Sink interface {
	Send(event string, data []byte) error
	Close() error
}

// Subscriber couples a stream identity with its sink.
type Subscriber struct {
	ID   uuid.UUID
	Sink Sink
}

// NewSubscriber mints a subscriber with a fresh ID for the given sink.
func NewSubscriber(sink Sink) *Subscriber {
	return &Subscriber{ID: uuid.New(), Sink: sink}
}
