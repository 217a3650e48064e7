// Package realtime implements a reconnecting text-message client.
//
// A Client owns one connection handle at a time. It reconnects with
// exponential backoff after any close it did not initiate through
// Disconnect, probes liveness with a heartbeat, and queues outbound
// messages while the connection is not open.
//
// All client state is owned by a single actor goroutine. Public methods,
// dial results, inbound messages, connection closes and timer firings are
// all delivered to it as events and handled one at a time.
package realtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/sync"
	"github.com/brianly1003/radmin/internal/transport"
)

const mailboxSize = 256

type timerKind int

const (
	timerPing timerKind = iota
	timerPong
	timerReconnect
	timerCount
)

func (k timerKind) String() string {
	switch k {
	case timerPing:
		return "ping"
	case timerPong:
		return "pong"
	case timerReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// timerSlot is a cancellable timer handle. A firing is honoured only while
// its token matches the slot, so cancelling also discards an in-flight firing.
type timerSlot struct {
	timer clockwork.Timer
	token uint64
}

// Mailbox events.
type (
	connectCmd    struct{ url string }
	sendCmd       struct{ payload string }
	disconnectCmd struct{ ack chan struct{} }

	dialResult struct {
		gen  uint64
		conn transport.Conn
		err  error
	}
	inboundMsg struct {
		gen  uint64
		data string
	}
	connClosed struct {
		gen uint64
		err error
	}
	timerFired struct {
		kind  timerKind
		token uint64
	}
)

// Client is a reconnecting realtime client. Create it with New.
type Client struct {
	opts  Options
	log   zerolog.Logger
	clock clockwork.Clock
	pub   ports.EventPublisher

	mailbox chan interface{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	// Owned by the actor goroutine.
	url           string
	gen           uint64
	conn          transport.Conn
	dialCancel    context.CancelFunc
	state         ConnState
	attempts      int
	failed        bool
	autoReconnect bool
	outbox        *outbox
	backoff       *backoff.ExponentialBackOff
	timers        [timerCount]timerSlot
	tokenSeq      uint64
	lastMessage   string
	hasMessage    bool
	published     Status

	// status mirrors the actor fields for readers on other goroutines.
	statusMu sync.RWMutex
	status   Status
}

// New creates a client and starts its actor goroutine. Nothing is dialed
// until Connect is called.
func New(opts ...Option) *Client {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = transport.DefaultWriteTimeout
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}

	c := &Client{
		opts:    o,
		log:     o.Logger,
		clock:   o.Clock,
		pub:     o.Publisher,
		mailbox: make(chan interface{}, mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateClosed,
		outbox:  newOutbox(o.MaxQueueSize),
		backoff: newReconnectBackOff(o.BaseDelay, o.Clock),
	}
	c.published = Status{State: StateClosed}
	c.status = c.published

	go c.run()
	return c
}

// Connect starts a connection to url. It is a no-op while a connection is
// CONNECTING or OPEN. An empty url reuses the previous one. Connect also
// re-enables automatic reconnection and clears a terminal failure.
func (c *Client) Connect(url string) {
	c.post(connectCmd{url: url})
}

// Send transmits payload if the connection is open and queues it otherwise.
// It never blocks on the network and never fails.
func (c *Client) Send(payload string) {
	if !c.post(sendCmd{payload: payload}) {
		c.log.Warn().Msg("client closed, message dropped")
	}
}

// Disconnect closes the connection, cancels the heartbeat and any scheduled
// reconnect, and disables automatic reconnection until the next Connect.
// When it returns, no reconnect can happen.
//
// Disconnect is handled after a write already in progress. Against a peer
// that stopped reading, that wait is bounded by the write timeout, or by the
// pong timeout for a heartbeat ping.
func (c *Client) Disconnect() {
	ack := make(chan struct{})
	if !c.post(disconnectCmd{ack: ack}) {
		return
	}
	select {
	case <-ack:
	case <-c.done:
	}
}

// Close disconnects and stops the actor goroutine. The client cannot be
// used afterwards.
func (c *Client) Close() {
	c.once.Do(func() {
		c.Disconnect()
		close(c.quit)
		<-c.done
	})
}

// Snapshot returns the current reactive outputs.
func (c *Client) Snapshot() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return c.Snapshot().State
}

// ReconnectAttempts returns the current reconnect attempt count.
func (c *Client) ReconnectAttempts() int {
	return c.Snapshot().ReconnectAttempts
}

// Failed reports whether reconnect attempts were exhausted.
func (c *Client) Failed() bool {
	return c.Snapshot().Failed
}

// LastMessage returns the most recently received payload.
func (c *Client) LastMessage() (string, bool) {
	s := c.Snapshot()
	return s.LastMessage, s.HasMessage
}

// post delivers an event to the actor. It returns false once the client is closed.
func (c *Client) post(ev interface{}) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.mailbox <- ev:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Client) run() {
	defer close(c.done)

	for {
		select {
		case <-c.quit:
			c.shutdown()
			return
		case ev := <-c.mailbox:
			c.handle(ev)
			c.syncStatus()
		}
	}
}

func (c *Client) handle(ev interface{}) {
	switch e := ev.(type) {
	case connectCmd:
		c.handleConnect(e.url)
	case sendCmd:
		c.handleSend(e.payload)
	case disconnectCmd:
		c.handleDisconnect()
		// Readers must observe CLOSED once Disconnect returns.
		c.syncStatus()
		close(e.ack)
	case dialResult:
		c.handleDialResult(e)
	case inboundMsg:
		c.handleInbound(e)
	case connClosed:
		c.handleConnClosed(e)
	case timerFired:
		c.handleTimer(e)
	}
}

func (c *Client) handleConnect(url string) {
	if url != "" {
		c.url = url
	}
	c.autoReconnect = true

	if c.state == StateConnecting || c.state == StateOpen {
		c.log.Debug().Str("state", c.state.String()).Msg("connect ignored, connection already active")
		return
	}
	if c.url == "" {
		c.log.Warn().Msg("connect called without a url")
		return
	}

	c.failed = false
	c.cancelTimer(timerReconnect)
	c.startAttempt()
}

// startAttempt discards any stale handle and dials a new one.
func (c *Client) startAttempt() {
	c.dropConn()

	c.gen++
	gen := c.gen
	url := c.url
	ctx, cancel := context.WithCancel(context.Background())
	c.dialCancel = cancel
	c.state = StateConnecting

	c.log.Info().
		Str("url", url).
		Int("attempt", c.attempts+1).
		Msg("connecting")

	dialer := c.opts.Dialer
	go func() {
		conn, err := dialer.Dial(ctx, url)
		if !c.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Client) handleDialResult(e dialResult) {
	if e.gen != c.gen {
		// Superseded by a newer attempt or a Disconnect.
		if e.conn != nil {
			_ = e.conn.Close()
		}
		return
	}
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}

	if e.err != nil {
		c.log.Warn().Err(e.err).Str("url", c.url).Msg("connection attempt failed")
		c.onClosed()
		return
	}

	c.conn = e.conn
	c.state = StateOpen
	c.attempts = 0
	c.failed = false
	c.backoff.Reset()

	c.log.Info().
		Str("url", c.url).
		Str("connection_id", e.conn.ID()).
		Int("queued", c.outbox.len()).
		Msg("connected")

	go c.readLoop(e.gen, e.conn)

	c.flush()
	if c.state == StateOpen {
		c.startHeartbeat()
	}
}

func (c *Client) readLoop(gen uint64, conn transport.Conn) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			c.post(connClosed{gen: gen, err: err})
			return
		}
		if !c.post(inboundMsg{gen: gen, data: string(data)}) {
			return
		}
	}
}

func (c *Client) handleInbound(e inboundMsg) {
	if e.gen != c.gen {
		return
	}
	// Any inbound message proves liveness.
	c.cancelTimer(timerPong)

	c.lastMessage = e.data
	c.hasMessage = true

	connID := ""
	if c.conn != nil {
		connID = c.conn.ID()
	}
	c.pub.Publish(events.NewRealtimeMessageEvent(connID, e.data))
}

func (c *Client) handleConnClosed(e connClosed) {
	if e.gen != c.gen {
		return
	}
	c.log.Info().Err(e.err).Str("url", c.url).Msg("connection closed")
	c.onClosed()
}

// onClosed runs the reconnection algorithm for the current handle.
func (c *Client) onClosed() {
	c.stopHeartbeat()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed

	if !c.autoReconnect {
		return
	}

	if c.attempts < c.opts.MaxAttempts {
		delay := nextDelay(c.backoff)
		c.attempts++
		c.armTimer(timerReconnect, delay)

		c.log.Info().
			Int("attempt", c.attempts).
			Dur("delay", delay).
			Msg("reconnect scheduled")
		c.pub.Publish(events.NewRealtimeReconnectEvent(c.attempts, delay))
		return
	}

	c.failed = true
	c.log.Error().
		Int("attempts", c.attempts).
		Str("url", c.url).
		Msg("max reconnection attempts reached, giving up")
	c.pub.Publish(events.NewRealtimeFailedEvent(c.attempts))
}

func (c *Client) handleSend(payload string) {
	if c.state == StateOpen && c.conn != nil {
		if err := c.write(payload); err != nil {
			c.log.Warn().Err(err).Msg("send failed, message queued")
			c.enqueue(payload)
			c.forceClose()
		}
		return
	}

	c.enqueue(payload)
	c.log.Debug().
		Str("state", c.state.String()).
		Int("queued", c.outbox.len()).
		Msg("connection not open, message queued")
}

func (c *Client) enqueue(payload string) {
	if c.outbox.push(payload) {
		c.log.Warn().Int("max", c.opts.MaxQueueSize).Msg("outbound queue full, oldest message dropped")
	}
}

// flush drains the outbound queue oldest first. A failed write leaves that
// payload and everything after it queued.
func (c *Client) flush() {
	for c.outbox.len() > 0 {
		if err := c.write(c.outbox.peek()); err != nil {
			c.log.Warn().Err(err).Int("queued", c.outbox.len()).Msg("flush failed")
			c.forceClose()
			return
		}
		c.outbox.pop()
	}
}

// write runs on the actor goroutine, so a stalled peer holds every other
// event, Disconnect included, for up to the write deadline.
func (c *Client) write(payload string) error {
	return c.writeWithin(payload, c.opts.WriteTimeout)
}

func (c *Client) writeWithin(payload string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.conn.Write(ctx, []byte(payload))
}

// pingWriteTimeout bounds heartbeat writes by the pong deadline.
func (c *Client) pingWriteTimeout() time.Duration {
	if c.opts.PongTimeout < c.opts.WriteTimeout {
		return c.opts.PongTimeout
	}
	return c.opts.WriteTimeout
}

// forceClose closes the current handle locally. The reader reports the
// close, which then takes the reconnection path.
func (c *Client) forceClose() {
	if c.conn == nil {
		return
	}
	c.stopHeartbeat()
	c.state = StateClosing
	_ = c.conn.Close()
}

func (c *Client) handleDisconnect() {
	c.autoReconnect = false
	c.cancelTimer(timerReconnect)
	c.stopHeartbeat()
	c.dropConn()
	// Invalidate events still in flight from the dropped handle.
	c.gen++
	c.state = StateClosed

	c.log.Info().Str("url", c.url).Msg("disconnected")
}

// dropConn cancels an in-progress dial and closes the current handle.
func (c *Client) dropConn() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) startHeartbeat() {
	c.stopHeartbeat()
	c.armTimer(timerPing, c.opts.PingInterval)
}

func (c *Client) stopHeartbeat() {
	c.cancelTimer(timerPing)
	c.cancelTimer(timerPong)
}

func (c *Client) handleTimer(e timerFired) {
	slot := &c.timers[e.kind]
	if slot.token != e.token {
		c.log.Debug().Str("timer", e.kind.String()).Msg("cancelled timer firing dropped")
		return
	}
	slot.timer = nil
	slot.token = 0

	switch e.kind {
	case timerPing:
		c.onPing()
	case timerPong:
		c.log.Warn().Dur("timeout", c.opts.PongTimeout).Msg("pong timeout, closing connection")
		c.forceClose()
	case timerReconnect:
		if !c.autoReconnect || c.state == StateConnecting || c.state == StateOpen {
			return
		}
		c.startAttempt()
	}
}

func (c *Client) onPing() {
	if c.state != StateOpen || c.conn == nil {
		return
	}
	if err := c.writeWithin(PingPayload, c.pingWriteTimeout()); err != nil {
		c.log.Warn().Err(err).Msg("ping failed")
		c.forceClose()
		return
	}
	c.log.Debug().Msg("sent ping")
	c.armTimer(timerPong, c.opts.PongTimeout)
	c.armTimer(timerPing, c.opts.PingInterval)
}

func (c *Client) armTimer(kind timerKind, d time.Duration) {
	c.cancelTimer(kind)
	c.tokenSeq++
	token := c.tokenSeq
	c.timers[kind] = timerSlot{
		token: token,
		timer: c.clock.AfterFunc(d, func() {
			c.post(timerFired{kind: kind, token: token})
		}),
	}
}

func (c *Client) cancelTimer(kind timerKind) {
	slot := &c.timers[kind]
	if slot.timer != nil {
		slot.timer.Stop()
	}
	slot.timer = nil
	slot.token = 0
}

func (c *Client) shutdown() {
	for k := timerKind(0); k < timerCount; k++ {
		c.cancelTimer(k)
	}
	c.dropConn()
}

// syncStatus copies actor state to the reader snapshot and publishes a
// state event when the state or attempt count changed.
func (c *Client) syncStatus() {
	s := Status{
		State:             c.state,
		ReconnectAttempts: c.attempts,
		Failed:            c.failed,
		LastMessage:       c.lastMessage,
		HasMessage:        c.hasMessage,
		Queued:            c.outbox.len(),
	}

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()

	if s.State != c.published.State || s.ReconnectAttempts != c.published.ReconnectAttempts {
		c.pub.Publish(events.NewRealtimeStateEvent(s.State.String(), s.ReconnectAttempts))
	}
	c.published = s
}
