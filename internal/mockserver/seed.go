package mockserver

import (
	"time"

	"github.com/brianly1003/radmin/internal/dashboard"
)

// SeedConversations returns the demo conversations served by default,
// with timestamps relative to now.
func SeedConversations(now time.Time) []dashboard.Conversation {
	at := func(minutesAgo int) time.Time {
		return now.Add(-time.Duration(minutesAgo) * time.Minute)
	}

	return []dashboard.Conversation{
		{
			ID:     "conv-1001",
			UserID: "tg-48213",
			Messages: []dashboard.Message{
				{ID: "m1", Sender: dashboard.SenderUser, Text: "Hi, I'd like to book an appointment for Friday.", Timestamp: at(12)},
				{ID: "m2", Sender: dashboard.SenderAI, Text: "Sure! Morning or afternoon?", Timestamp: at(11)},
				{ID: "m3", Sender: dashboard.SenderUser, Text: "Afternoon please, around 3pm.", Timestamp: at(2)},
			},
			LastUpdated: at(2),
			UnreadCount: 1,
			Active:      true,
		},
		{
			ID:     "conv-1002",
			UserID: "tg-77120",
			Messages: []dashboard.Message{
				{ID: "m4", Sender: dashboard.SenderUser, Text: "What are your opening hours?", Timestamp: at(40)},
				{ID: "m5", Sender: dashboard.SenderAI, Text: "We're open 9am to 6pm, Monday to Saturday.", Timestamp: at(39)},
			},
			LastUpdated: at(39),
			Active:      true,
		},
		{
			ID:          "conv-1003",
			UserID:      "tg-30544",
			LastUpdated: at(180),
		},
	}
}
