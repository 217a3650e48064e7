package app

import (
	"context"
	"fmt"
	"time"

	"github.com/brianly1003/radmin/internal/realtime"
)

const deliverPoll = 20 * time.Millisecond

// Deliver queues payload on client, connects to url and waits until the
// payload has been written to an open connection. The client is left
// connected; callers own its lifetime.
func Deliver(ctx context.Context, client *realtime.Client, url, payload string) error {
	// Queued before Connect so the payload is in the outbound queue when
	// the connection opens.
	client.Send(payload)
	client.Connect(url)

	ticker := time.NewTicker(deliverPoll)
	defer ticker.Stop()

	for {
		s := client.Snapshot()
		if s.State == realtime.StateOpen && s.Queued == 0 {
			return nil
		}
		if s.Failed {
			return fmt.Errorf("gave up after %d reconnect attempts", s.ReconnectAttempts)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("message not delivered: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
