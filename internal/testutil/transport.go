package testutil

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/brianly1003/radmin/internal/sync"
	"github.com/brianly1003/radmin/internal/transport"
)

// ErrDialRefused is returned by FakeDialer for failed dials.
var ErrDialRefused = errors.New("connection refused")

// FakeConn is an in-memory transport.Conn.
type FakeConn struct {
	id      string
	inbound chan []byte
	done    chan struct{}
	remote  chan struct{}

	mu         sync.Mutex
	written    []string
	budgets    []time.Duration
	writeErr   error
	closed     bool
	remoteOnce sync.Once
}

// NewFakeConn creates an open fake connection.
func NewFakeConn(id string) *FakeConn {
	return &FakeConn{
		id:      id,
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
		remote:  make(chan struct{}),
	}
}

// ID returns the connection ID.
func (c *FakeConn) ID() string {
	return c.id
}

// Read returns the next delivered message.
func (c *FakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.remote:
		return nil, io.EOF
	case <-c.done:
		return nil, transport.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write records data unless the connection is closed or a write error is set.
func (c *FakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrTransportClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	var budget time.Duration
	if d, ok := ctx.Deadline(); ok {
		budget = time.Until(d)
	}
	c.written = append(c.written, string(data))
	c.budgets = append(c.budgets, budget)
	return nil
}

// Close closes the connection locally.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Done returns a channel that's closed when the connection is closed.
func (c *FakeConn) Done() <-chan struct{} {
	return c.done
}

// Deliver queues an inbound message as if sent by the server.
func (c *FakeConn) Deliver(msg string) {
	c.inbound <- []byte(msg)
}

// CloseFromServer makes pending and future reads return io.EOF.
func (c *FakeConn) CloseFromServer() {
	c.remoteOnce.Do(func() { close(c.remote) })
}

// SetWriteError makes subsequent writes fail with err (nil to clear).
func (c *FakeConn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Written returns all successfully written payloads.
func (c *FakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

// WriteBudgets returns, for each successful write, the time left until the
// write context's deadline when the write started. Zero means no deadline.
func (c *FakeConn) WriteBudgets() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.budgets))
	copy(out, c.budgets)
	return out
}

// IsClosed reports whether Close was called.
func (c *FakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ transport.Conn = (*FakeConn)(nil)

// FakeDialer hands out FakeConns and can be told to fail.
type FakeDialer struct {
	mu         sync.Mutex
	urls       []string
	conns      []*FakeConn
	failNext   int
	alwaysFail bool
	hold       chan struct{}

	// Dialed receives every connection handed out.
	Dialed chan *FakeConn
}

// NewFakeDialer creates a dialer whose dials succeed.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{Dialed: make(chan *FakeConn, 64)}
}

// FailNext makes the next n dials fail.
func (d *FakeDialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

// FailAlways makes every dial fail until cleared.
func (d *FakeDialer) FailAlways(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alwaysFail = fail
}

// Hold makes dials block until Release is called or the dial is cancelled.
func (d *FakeDialer) Hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hold = make(chan struct{})
}

// Release unblocks held dials.
func (d *FakeDialer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hold != nil {
		close(d.hold)
		d.hold = nil
	}
}

// Dial implements transport.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	hold := d.hold
	d.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	if d.alwaysFail || d.failNext > 0 {
		if d.failNext > 0 {
			d.failNext--
		}
		d.mu.Unlock()
		return nil, ErrDialRefused
	}
	conn := NewFakeConn(transport.GenerateID())
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	select {
	case d.Dialed <- conn:
	default:
	}
	return conn, nil
}

// DialCount returns how many dials were attempted.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// URLs returns the URL of every dial attempt.
func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}

// Conns returns every connection handed out.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeConn, len(d.conns))
	copy(out, d.conns)
	return out
}

var _ transport.Dialer = (*FakeDialer)(nil)
