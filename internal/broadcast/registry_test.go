package broadcast

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink records frames and can be told to fail writes.
type memorySink struct {
	mu       sync.Mutex
	events   []string
	payloads []string
	sendErr  error
	closed   bool
}

func (m *memorySink) Send(event string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.events = append(m.events, event)
	m.payloads = append(m.payloads, string(data))
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.payloads...)
}

func (m *memorySink) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestRegistry_AddAndLen(t *testing.T) {
	r := NewRegistry(10)
	assert.Equal(t, 0, r.Len())

	sub := NewSubscriber(&memorySink{})
	require.NoError(t, r.Add(sub))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(10)
	sub := NewSubscriber(&memorySink{})
	require.NoError(t, r.Add(sub))

	assert.True(t, r.Remove(sub.ID))
	assert.Equal(t, 0, r.Len())

	// Second remove of the same ID is a no-op
	assert.False(t, r.Remove(sub.ID))
	assert.Equal(t, 0, r.Len())

	// Removing an ID that was never registered is also a no-op
	assert.False(t, r.Remove(uuid.New()))
}

func TestRegistry_SnapshotIsIsolated(t *testing.T) {
	r := NewRegistry(10)
	sub1 := NewSubscriber(&memorySink{})
	sub2 := NewSubscriber(&memorySink{})
	require.NoError(t, r.Add(sub1))
	require.NoError(t, r.Add(sub2))

	snap := r.Snapshot()
	require.Len(t, snap, 2)

	// Mutations after the snapshot don't affect the returned slice
	r.Remove(sub1.ID)
	r.Remove(sub2.ID)
	assert.Len(t, snap, 2)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CapacityCap(t *testing.T) {
	r := NewRegistry(2)

	require.NoError(t, r.Add(NewSubscriber(&memorySink{})))
	sub2 := NewSubscriber(&memorySink{})
	require.NoError(t, r.Add(sub2))

	err := r.Add(NewSubscriber(&memorySink{}))
	require.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, 2, r.Len())

	// Freeing a slot lets a new subscriber in
	r.Remove(sub2.ID)
	assert.NoError(t, r.Add(NewSubscriber(&memorySink{})))
}

func TestRegistry_UnlimitedWhenCapZero(t *testing.T) {
	r := NewRegistry(0)
	for range 100 {
		require.NoError(t, r.Add(NewSubscriber(&memorySink{})))
	}
	assert.Equal(t, 100, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry(10)
	subs := make([]*Subscriber, 3)
	for i := range subs {
		subs[i] = NewSubscriber(&memorySink{})
		require.NoError(t, r.Add(subs[i]))
	}

	cleared := r.Clear()
	assert.Len(t, cleared, 3)
	assert.Equal(t, 0, r.Len())

	// Clearing an empty registry returns nothing
	assert.Empty(t, r.Clear())
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := NewRegistry(0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := NewSubscriber(&memorySink{})
			if err := r.Add(sub); err != nil {
				return
			}
			r.Snapshot()
			r.Remove(sub.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
