package transport

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brianly1003/radmin/internal/sync"
)

const (
	// Default timeouts for WebSocket operations.
	DefaultWriteTimeout     = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	// Default maximum message size (512KB).
	DefaultMaxMessageSize = 512 * 1024
)

// WebSocketConn implements Conn over a gorilla WebSocket connection.
// Reads must come from a single goroutine; writes are serialized internally.
type WebSocketConn struct {
	id   string
	conn *websocket.Conn

	writeTimeout time.Duration
	readTimeout  time.Duration

	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// WebSocketOption configures a WebSocketConn.
type WebSocketOption func(*WebSocketConn)

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(c *WebSocketConn) {
		c.writeTimeout = d
	}
}

// WithReadTimeout sets an idle read timeout. Zero disables it.
func WithReadTimeout(d time.Duration) WebSocketOption {
	return func(c *WebSocketConn) {
		c.readTimeout = d
	}
}

// NewWebSocketConn wraps an established WebSocket connection.
func NewWebSocketConn(conn *websocket.Conn, opts ...WebSocketOption) *WebSocketConn {
	c := &WebSocketConn{
		id:           GenerateID(),
		conn:         conn,
		writeTimeout: DefaultWriteTimeout,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	conn.SetReadLimit(DefaultMaxMessageSize)

	return c
}

// ID returns the unique identifier for this connection.
func (c *WebSocketConn) ID() string {
	return c.id
}

// Read reads the next text message, skipping binary frames.
func (c *WebSocketConn) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-c.done:
			return nil, ErrTransportClosed
		default:
		}

		var deadline time.Time
		if c.readTimeout > 0 {
			deadline = time.Now().Add(c.readTimeout)
		}
		if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
			deadline = d
		}
		_ = c.conn.SetReadDeadline(deadline)

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}

		if messageType != websocket.TextMessage {
			continue
		}
		return message, nil
	}
}

// Write sends a text message.
func (c *WebSocketConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrTransportClosed
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal-closure frame and closes the connection.
func (c *WebSocketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is closed.
func (c *WebSocketConn) Done() <-chan struct{} {
	return c.done
}
