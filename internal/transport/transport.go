// Package transport provides the connection handle abstraction used by the
// realtime client.
package transport

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common transport errors.
var (
	ErrTransportClosed = errors.New("transport is closed")
)

// Conn represents one bidirectional text-message connection.
// A Conn is never reused: once closed, a new one must be dialed.
type Conn interface {
	// ID returns a unique identifier for this connection.
	ID() string

	// Read reads the next text message.
	// It blocks until a message is available or the context is cancelled.
	// Returns io.EOF when the peer closed the connection cleanly.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a text message.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection. Safe to call multiple times.
	Close() error

	// Done returns a channel that's closed when the connection is closed.
	Done() <-chan struct{}
}

// Dialer opens new connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GenerateID generates a unique connection ID.
func GenerateID() string {
	return uuid.New().String()
}
