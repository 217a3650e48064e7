package hub

import (
	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/sync"
)

// FilteredSubscriber wraps a subscriber and forwards only selected event types.
// With no types selected, all events are forwarded.
type FilteredSubscriber struct {
	inner ports.Subscriber
	types map[events.EventType]bool
	mu    sync.RWMutex
}

// NewFilteredSubscriber creates a filtered subscriber forwarding the given types.
func NewFilteredSubscriber(inner ports.Subscriber, types ...events.EventType) *FilteredSubscriber {
	f := &FilteredSubscriber{
		inner: inner,
		types: make(map[events.EventType]bool, len(types)),
	}
	for _, t := range types {
		f.types[t] = true
	}
	return f
}

// ID returns the subscriber's unique identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send forwards the event if it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// Allow adds an event type to the filter.
func (f *FilteredSubscriber) Allow(t events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[t] = true
}

// AllowAll clears the filter.
func (f *FilteredSubscriber) AllowAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = make(map[events.EventType]bool)
}

// IsFiltering returns true if only selected types are forwarded.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types) > 0
}

func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.types) == 0 {
		return true
	}
	return f.types[event.Type()]
}
