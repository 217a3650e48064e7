// Package ports defines the interfaces (ports) for the hexagonal architecture.
package ports

import (
	"github.com/brianly1003/radmin/internal/domain/events"
)

// Subscriber represents an event subscriber.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber.
	ID() string

	// Send sends an event to this subscriber.
	// Returns error if the subscriber is closed or the send fails.
	Send(event events.Event) error

	// Close closes the subscriber.
	Close() error

	// Done returns a channel that's closed when the subscriber is done.
	Done() <-chan struct{}
}

// EventPublisher accepts events for distribution. Publish must not block.
type EventPublisher interface {
	Publish(event events.Event)
}

// EventHub defines the contract for event distribution.
type EventHub interface {
	EventPublisher

	// Start begins the event hub.
	Start() error

	// Stop gracefully stops the hub.
	Stop() error

	// Subscribe adds a new subscriber.
	Subscribe(sub Subscriber)

	// Unsubscribe removes a subscriber by ID.
	Unsubscribe(id string)

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}
