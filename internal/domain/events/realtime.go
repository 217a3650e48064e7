package events

import "time"

// RealtimeStatePayload is carried by realtime_state events.
type RealtimeStatePayload struct {
	State             string `json:"state"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

// RealtimeMessagePayload is carried by realtime_message events.
type RealtimeMessagePayload struct {
	ConnectionID string `json:"connection_id"`
	Data         string `json:"data"`
}

// RealtimeReconnectPayload is carried by realtime_reconnect_scheduled events.
type RealtimeReconnectPayload struct {
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay_ns"`
}

// RealtimeFailedPayload is carried by realtime_failed events.
type RealtimeFailedPayload struct {
	ReconnectAttempts int `json:"reconnect_attempts"`
}

// NewRealtimeStateEvent creates a realtime_state event.
func NewRealtimeStateEvent(state string, attempts int) *BaseEvent {
	return NewEvent(EventTypeRealtimeState, RealtimeStatePayload{
		State:             state,
		ReconnectAttempts: attempts,
	})
}

// NewRealtimeMessageEvent creates a realtime_message event.
func NewRealtimeMessageEvent(connID, data string) *BaseEvent {
	return NewEvent(EventTypeRealtimeMessage, RealtimeMessagePayload{
		ConnectionID: connID,
		Data:         data,
	})
}

// NewRealtimeReconnectEvent creates a realtime_reconnect_scheduled event.
func NewRealtimeReconnectEvent(attempt int, delay time.Duration) *BaseEvent {
	return NewEvent(EventTypeRealtimeReconnectScheduled, RealtimeReconnectPayload{
		Attempt: attempt,
		Delay:   delay,
	})
}

// NewRealtimeFailedEvent creates a realtime_failed event.
func NewRealtimeFailedEvent(attempts int) *BaseEvent {
	return NewEvent(EventTypeRealtimeFailed, RealtimeFailedPayload{
		ReconnectAttempts: attempts,
	})
}
