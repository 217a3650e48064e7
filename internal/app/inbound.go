package app

import (
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
)

// storeApplier applies each inbound payload to the store before forwarding
// the event. The realtime client publishes from its actor goroutine, so the
// store sees every message, in the order the transport delivered them.
type storeApplier struct {
	store *dashboard.Store
	next  ports.EventPublisher
}

func (p storeApplier) Publish(event events.Event) {
	if event.Type() == events.EventTypeRealtimeMessage {
		p.apply(event)
	}
	p.next.Publish(event)
}

func (p storeApplier) apply(event events.Event) {
	base, ok := event.(*events.BaseEvent)
	if !ok {
		return
	}
	payload, ok := base.Payload.(events.RealtimeMessagePayload)
	if !ok {
		return
	}
	if _, err := p.store.Apply(payload.Data); err != nil {
		log.Warn().Err(err).Msg("failed to apply inbound message")
	}
}

var _ ports.EventPublisher = storeApplier{}
