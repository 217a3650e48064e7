// Package hub fans events out to subscribers.
package hub

import (
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/sync"
)

// DefaultBufferSize is the broadcast queue length used by New.
const DefaultBufferSize = 1024

// Hub is the central event dispatcher that fans out events to all subscribers.
// A single goroutine delivers events, so every subscriber sees them in
// publish order.
type Hub struct {
	// subscribers holds all active subscribers
	subscribers map[string]ports.Subscriber

	// broadcast channel receives events to be broadcast
	broadcast chan events.Event

	// register channel receives new subscribers
	register chan ports.Subscriber

	// unregister channel receives subscriber IDs to remove
	unregister chan string

	// mu protects subscribers and running
	mu sync.RWMutex

	// done signals when the hub should stop
	done chan struct{}

	running bool
}

// New creates a new Hub.
func New() *Hub {
	return NewWithBuffer(DefaultBufferSize)
}

// NewWithBuffer creates a Hub whose broadcast queue holds size events.
func NewWithBuffer(size int) *Hub {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		broadcast:   make(chan events.Event, size),
		register:    make(chan ports.Subscriber),
		unregister:  make(chan string),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's main loop.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	log.Debug().Msg("event hub started")

	go h.run()
	return nil
}

// Stop gracefully stops the hub and closes all subscribers.
// A stopped hub cannot be restarted.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.done)

	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

// run is the main event loop.
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub.ID()] = sub
			h.mu.Unlock()
			log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")

		case id := <-h.unregister:
			h.remove(id)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event events.Event) {
	var failed []string

	h.mu.RLock()
	for id, sub := range h.subscribers {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", id).
				Str("event_type", string(event.Type())).
				Err(err).
				Msg("failed to send event to subscriber")
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range failed {
		h.remove(id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		_ = sub.Close()
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// Publish queues an event for all subscribers. It never blocks; when the
// broadcast queue is full the event is dropped.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Msg("event published")
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: broadcast channel full")
	}
}

// Subscribe adds a new subscriber.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unsubscribe removes a subscriber by ID.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

var _ ports.EventHub = (*Hub)(nil)
