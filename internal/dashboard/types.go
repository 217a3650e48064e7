// Package dashboard holds the admin console's view of conversations and
// system status, fed by messages from the realtime channel.
package dashboard

import (
	"encoding/json"
	"time"
)

// Message types carried in the envelope "type" field.
const (
	TypeConversationUpdate = "CONVERSATION_UPDATE"
	TypeStatusUpdate       = "STATUS_UPDATE"
	TypeAdminMessage       = "ADMIN_MESSAGE"
)

// PongPayload is the heartbeat reply; it is not an envelope.
const PongPayload = "pong"

// NoMessagesText is shown for a conversation without messages.
const NoMessagesText = "No messages yet"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser  Sender = "USER"
	SenderAdmin Sender = "ADMIN"
	SenderAI    Sender = "AI"
)

// Message is a single chat message inside a conversation.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one end-user conversation as seen by admins.
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"lastUpdated"`
	UnreadCount int       `json:"unreadCount"`
	Active      bool      `json:"active"`
}

// LastMessageText returns the text of the newest message, or NoMessagesText.
func (c Conversation) LastMessageText() string {
	if len(c.Messages) == 0 {
		return NoMessagesText
	}
	return c.Messages[len(c.Messages)-1].Text
}

// DisplayUser returns the user ID, or a placeholder when it is unset.
func (c Conversation) DisplayUser() string {
	if c.UserID == "" {
		return "Unknown User"
	}
	return c.UserID
}

// WithMessage returns a copy of c with m appended and LastUpdated moved to
// the message timestamp.
func (c Conversation) WithMessage(m Message) Conversation {
	out := c
	out.Messages = make([]Message, 0, len(c.Messages)+1)
	out.Messages = append(out.Messages, c.Messages...)
	out.Messages = append(out.Messages, m)
	if m.Timestamp.After(out.LastUpdated) {
		out.LastUpdated = m.Timestamp
	}
	return out
}

// SystemStatus reports backend health as pushed by STATUS_UPDATE.
type SystemStatus struct {
	BotOnline   bool `json:"botOnline"`
	LLMOnline   bool `json:"llmOnline"`
	ActiveUsers int  `json:"activeUsers"`
}

// Envelope is the wire shape of every structured server message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload under the given type.
func NewEnvelope(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
