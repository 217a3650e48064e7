package dashboard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianly1003/radmin/internal/domain"
)

// AdminMessage is an admin intervention sent into a conversation.
type AdminMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	SenderID       string `json:"senderId"`
}

// NewAdminMessage builds the ADMIN_MESSAGE payload. Blank text is rejected.
func NewAdminMessage(conversationID, text, senderID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyMessage
	}
	if conversationID == "" {
		return "", domain.NewValidationError("conversationId", "is required")
	}

	data, err := json.Marshal(AdminMessage{
		Type:           TypeAdminMessage,
		ConversationID: conversationID,
		Message:        text,
		SenderID:       senderID,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseAdminMessage decodes an ADMIN_MESSAGE payload.
func ParseAdminMessage(raw []byte) (AdminMessage, error) {
	var msg AdminMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return AdminMessage{}, fmt.Errorf("decode admin message: %w", err)
	}
	if msg.Type != TypeAdminMessage {
		return AdminMessage{}, fmt.Errorf("%q: %w", msg.Type, domain.ErrUnknownEnvelope)
	}
	if strings.TrimSpace(msg.Message) == "" {
		return AdminMessage{}, domain.ErrEmptyMessage
	}
	if msg.ConversationID == "" {
		return AdminMessage{}, domain.NewValidationError("conversationId", "is required")
	}
	return msg, nil
}
