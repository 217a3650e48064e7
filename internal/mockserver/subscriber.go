package mockserver

import (
	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/domain"
	"github.com/brianly1003/radmin/internal/domain/events"
)

// ClientSubscriber forwards dashboard events to an admin socket as
// CONVERSATION_UPDATE and STATUS_UPDATE envelopes.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber creates a subscriber from an admin client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Send encodes the event and queues it on the client. Events that have no
// envelope form are skipped.
func (s *ClientSubscriber) Send(event events.Event) error {
	if s.client.IsClosed() {
		return domain.ErrSubscriberClosed
	}

	data, ok, err := envelopeFor(event)
	if err != nil || !ok {
		return err
	}

	s.client.Send(data)
	return nil
}

// Close closes the subscriber.
func (s *ClientSubscriber) Close() error {
	s.client.Close()
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.done
}

func envelopeFor(event events.Event) ([]byte, bool, error) {
	base, ok := event.(*events.BaseEvent)
	if !ok {
		return nil, false, nil
	}

	var msgType string
	switch event.Type() {
	case events.EventTypeConversationUpdated:
		msgType = dashboard.TypeConversationUpdate
	case events.EventTypeStatusUpdated:
		msgType = dashboard.TypeStatusUpdate
	default:
		return nil, false, nil
	}

	data, err := dashboard.NewEnvelope(msgType, base.Payload)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
