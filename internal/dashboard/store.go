package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/domain"
	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/sync"
)

// Store owns the conversation list and system status. It is safe for
// concurrent use. Conversations are kept sorted by LastUpdated, newest first.
type Store struct {
	mu            sync.RWMutex
	conversations []Conversation
	status        SystemStatus
	publisher     ports.EventPublisher
}

// NewStore creates an empty store. publisher may be nil.
func NewStore(publisher ports.EventPublisher) *Store {
	return &Store{publisher: publisher}
}

// Apply decodes one raw inbound message and applies it. It returns the
// envelope type that was applied, or "" when the message was ignored
// (heartbeat replies and unknown types). Malformed JSON is an error.
func (s *Store) Apply(raw string) (string, error) {
	if strings.TrimSpace(raw) == PongPayload {
		return "", nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeConversationUpdate:
		if len(env.Payload) == 0 || string(env.Payload) == "null" {
			return "", fmt.Errorf("%s: %w", env.Type, domain.ErrInvalidPayload)
		}
		var conv Conversation
		if err := json.Unmarshal(env.Payload, &conv); err != nil {
			return "", fmt.Errorf("%s: %w", env.Type, err)
		}
		s.Upsert(conv)
		return env.Type, nil

	case TypeStatusUpdate:
		if len(env.Payload) == 0 || string(env.Payload) == "null" {
			return "", fmt.Errorf("%s: %w", env.Type, domain.ErrInvalidPayload)
		}
		var status SystemStatus
		if err := json.Unmarshal(env.Payload, &status); err != nil {
			return "", fmt.Errorf("%s: %w", env.Type, err)
		}
		s.SetStatus(status)
		return env.Type, nil

	default:
		log.Debug().Str("type", env.Type).Msg("ignoring message of unknown type")
		return "", nil
	}
}

// Replace swaps in a full conversation list, as loaded at startup.
func (s *Store) Replace(convs []Conversation) {
	s.mu.Lock()
	s.conversations = append([]Conversation(nil), convs...)
	sortConversations(s.conversations)
	s.mu.Unlock()
}

// Upsert inserts conv or replaces the conversation with the same ID. A new
// conversation goes ahead of existing ones with the same LastUpdated.
func (s *Store) Upsert(conv Conversation) {
	s.mu.Lock()
	replaced := false
	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			s.conversations[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append([]Conversation{conv}, s.conversations...)
	}
	sortConversations(s.conversations)
	s.mu.Unlock()

	s.publish(events.NewEvent(events.EventTypeConversationUpdated, conv))
}

// Update applies fn to the conversation with id under the store lock, then
// re-sorts and publishes the result. It reports false without calling fn
// when id is unknown.
func (s *Store) Update(id string, fn func(*Conversation)) (Conversation, bool) {
	s.mu.Lock()
	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Conversation{}, false
	}
	fn(&s.conversations[idx])
	conv := s.conversations[idx]
	sortConversations(s.conversations)
	s.mu.Unlock()

	s.publish(events.NewEvent(events.EventTypeConversationUpdated, conv))
	return conv, true
}

// SetStatus replaces the system status.
func (s *Store) SetStatus(status SystemStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.publish(events.NewEvent(events.EventTypeStatusUpdated, status))
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Conversation(nil), s.conversations...)
}

// Conversation looks up a conversation by ID.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Status returns the current system status.
func (s *Store) Status() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) publish(e events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

// sortConversations orders by LastUpdated descending. Ties keep their
// relative order.
func sortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastUpdated.After(convs[j].LastUpdated)
	})
}
