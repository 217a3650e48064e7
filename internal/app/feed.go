package app

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/domain/events"
)

// NewFeedLogger returns the slog logger used for the console feed.
func NewFeedLogger(w io.Writer, color bool, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !color,
	}))
}

func renderEvent(feed *slog.Logger, event events.Event) {
	base, ok := event.(*events.BaseEvent)
	if !ok {
		return
	}

	switch p := base.Payload.(type) {
	case events.RealtimeStatePayload:
		feed.Info("connection", "state", p.State, "reconnect_attempts", p.ReconnectAttempts)
	case events.RealtimeReconnectPayload:
		feed.Warn("reconnecting", "attempt", p.Attempt, "delay", p.Delay)
	case events.RealtimeFailedPayload:
		feed.Error("connection lost, giving up", "attempts", p.ReconnectAttempts)
	case dashboard.Conversation:
		feed.Info(conversationLine(p), conversationAttrs(p)...)
	case dashboard.SystemStatus:
		feed.Info("system status",
			"bot", onlineText(p.BotOnline),
			"llm", onlineText(p.LLMOnline),
			"active", p.ActiveUsers)
	}
}

func conversationLine(c dashboard.Conversation) string {
	return fmt.Sprintf("%s: %s", c.DisplayUser(), c.LastMessageText())
}

func conversationAttrs(c dashboard.Conversation) []any {
	attrs := []any{"conversation", c.ID}
	if c.UnreadCount > 0 {
		attrs = append(attrs, "unread", c.UnreadCount)
	}
	return attrs
}

func onlineText(ok bool) string {
	if ok {
		return "online"
	}
	return "offline"
}
