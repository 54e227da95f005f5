// Package feed keeps the bounded, most-recent-first list of events shown to
// operators.
package feed

import (
	"sync"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
)

// DefaultCapacity matches the dashboard's feed length.
const DefaultCapacity = 50

// Feed is a bounded deque of events: new events go on the front and the
// oldest fall off the back once capacity is exceeded. It is safe for
// concurrent use.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	// events is stored oldest first so pushes are appends.
	events []domain.Event
}

// New creates a Feed holding at most capacity events. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		events:   make([]domain.Event, 0, capacity),
	}
}

// Push prepends events in emission order, so the last event of the batch
// becomes the newest entry. It returns how many older events were evicted.
func (f *Feed) Push(events ...domain.Event) int {
	if len(events) == 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, events...)
	overflow := len(f.events) - f.capacity
	if overflow <= 0 {
		return 0
	}
	// Copy down so the backing array does not grow without bound.
	n := copy(f.events, f.events[overflow:])
	clear(f.events[n:])
	f.events = f.events[:n]
	return overflow
}

// Snapshot returns a copy of the feed, newest first.
func (f *Feed) Snapshot() []domain.Event {
	return f.Latest(0)
}

// Latest returns up to n events, newest first. n <= 0 means all.
func (f *Feed) Latest(n int) []domain.Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.events) {
		n = len(f.events)
	}
	out := make([]domain.Event, n)
	for i := range n {
		out[i] = f.events[len(f.events)-1-i]
	}
	return out
}

// Len reports the number of events held.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Cap reports the feed capacity.
func (f *Feed) Cap() int {
	return f.capacity
}
