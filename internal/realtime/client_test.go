package realtime

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/sync"
	"github.com/brianly1003/radmin/internal/testutil"
)

const (
	testURL     = "ws://localhost:8080/ws/admin"
	waitTimeout = 2 * time.Second
)

type harness struct {
	t      *testing.T
	clock  *clockwork.FakeClock
	dialer *testutil.FakeDialer
	hub    *testutil.MockEventHub
	client *Client
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clock:  clockwork.NewFakeClock(),
		dialer: testutil.NewFakeDialer(),
		hub:    testutil.NewMockEventHub(),
	}
	base := []Option{
		WithClock(h.clock),
		WithDialer(h.dialer),
		WithPublisher(h.hub),
		WithLogger(zerolog.Nop()),
	}
	h.client = New(append(base, opts...)...)
	t.Cleanup(h.client.Close)
	return h
}

// nextConn waits for the dialer to hand out a connection.
func (h *harness) nextConn() *testutil.FakeConn {
	h.t.Helper()
	select {
	case conn := <-h.dialer.Dialed:
		return conn
	case <-time.After(waitTimeout):
		h.t.Fatal("no connection dialed")
		return nil
	}
}

func (h *harness) waitFor(cond func(Status) bool, msg string) {
	h.t.Helper()
	testutil.Eventually(h.t, waitTimeout, func() bool {
		return cond(h.client.Snapshot())
	}, msg)
}

func (h *harness) waitOpen() {
	h.t.Helper()
	h.waitFor(func(s Status) bool { return s.State == StateOpen }, "state OPEN")
}

// advance waits until n timers are armed, then moves the fake clock.
func (h *harness) advance(n int, d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, n); err != nil {
		h.t.Fatalf("waiting for %d timers: %v", n, err)
	}
	h.clock.Advance(d)
}

func (h *harness) reconnectDelays() []time.Duration {
	var delays []time.Duration
	for _, e := range h.hub.PublishedEvents() {
		if e.Type() != events.EventTypeRealtimeReconnectScheduled {
			continue
		}
		p := e.(*events.BaseEvent).Payload.(events.RealtimeReconnectPayload)
		delays = append(delays, p.Delay)
	}
	return delays
}

func (h *harness) countEvents(t events.EventType) int {
	n := 0
	for _, e := range h.hub.PublishedEvents() {
		if e.Type() == t {
			n++
		}
	}
	return n
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateConnecting, "CONNECTING"},
		{StateOpen, "OPEN"},
		{StateClosing, "CLOSING"},
		{StateClosed, "CLOSED"},
		{ConnState(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClient_InitialStatus(t *testing.T) {
	h := newHarness(t)

	s := h.client.Snapshot()
	if s.State != StateClosed {
		t.Errorf("State = %v, want CLOSED", s.State)
	}
	if s.ReconnectAttempts != 0 || s.Failed || s.HasMessage || s.Queued != 0 {
		t.Errorf("unexpected initial status %+v", s)
	}
	if h.dialer.DialCount() != 0 {
		t.Error("New() must not dial")
	}
}

func TestClient_ConnectOpens(t *testing.T) {
	h := newHarness(t)

	h.client.Connect(testURL)
	h.nextConn()
	h.waitOpen()

	if got := h.dialer.URLs(); !reflect.DeepEqual(got, []string{testURL}) {
		t.Errorf("dialed URLs = %v", got)
	}
	if h.countEvents(events.EventTypeRealtimeState) == 0 {
		t.Error("expected realtime_state events")
	}
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	t.Run("while open", func(t *testing.T) {
		h := newHarness(t)
		h.client.Connect(testURL)
		h.nextConn()
		h.waitOpen()

		h.client.Connect(testURL)
		h.client.Connect("")
		// Round-trip through the mailbox so both connects were handled.
		h.client.Send("sync")
		h.waitFor(func(s Status) bool { return s.State == StateOpen }, "still open")

		if n := h.dialer.DialCount(); n != 1 {
			t.Errorf("DialCount = %d, want 1", n)
		}
	})

	t.Run("while connecting", func(t *testing.T) {
		h := newHarness(t)
		h.dialer.Hold()
		h.client.Connect(testURL)
		h.waitFor(func(s Status) bool { return s.State == StateConnecting }, "state CONNECTING")

		h.client.Connect(testURL)
		h.client.Send("sync")
		h.waitFor(func(s Status) bool { return s.Queued == 1 }, "send handled")

		if n := h.dialer.DialCount(); n != 1 {
			t.Errorf("DialCount = %d, want 1", n)
		}
		h.dialer.Release()
		h.waitOpen()
	})
}

func TestReconnectBackOff_Sequence(t *testing.T) {
	bases := []time.Duration{time.Second, 1500 * time.Millisecond, 7 * time.Second, 40 * time.Second}

	for _, base := range bases {
		t.Run(base.String(), func(t *testing.T) {
			b := newReconnectBackOff(base, clockwork.NewFakeClock())
			for n := 0; n < 12; n++ {
				want := base << n
				if want > MaxReconnectDelay || want <= 0 {
					want = MaxReconnectDelay
				}
				if got := nextDelay(b); got != want {
					t.Fatalf("delay[%d] = %v, want %v", n, got, want)
				}
			}

			b.Reset()
			want := base
			if want > MaxReconnectDelay {
				want = MaxReconnectDelay
			}
			if got := nextDelay(b); got != want {
				t.Errorf("after Reset delay = %v, want %v", got, want)
			}
		})
	}
}

func TestClient_BackoffScenario(t *testing.T) {
	h := newHarness(t, WithBaseDelay(time.Second), WithMaxAttempts(3))
	h.dialer.FailAlways(true)

	h.client.Connect(testURL)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range want {
		attempt := i + 1
		h.waitFor(func(s Status) bool { return s.ReconnectAttempts == attempt }, "attempt scheduled")
		h.advance(1, d)
	}

	h.waitFor(func(s Status) bool { return s.Failed }, "terminal failure")

	if got := h.reconnectDelays(); !reflect.DeepEqual(got, want) {
		t.Errorf("scheduled delays = %v, want %v", got, want)
	}
	if n := h.dialer.DialCount(); n != 4 {
		t.Errorf("DialCount = %d, want 4", n)
	}
	if n := h.countEvents(events.EventTypeRealtimeFailed); n != 1 {
		t.Errorf("realtime_failed events = %d, want 1", n)
	}

	// No further attempts once failed.
	h.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if n := h.dialer.DialCount(); n != 4 {
		t.Errorf("DialCount after failure = %d, want 4", n)
	}
	if s := h.client.Snapshot(); s.State != StateClosed || s.ReconnectAttempts != 3 {
		t.Errorf("unexpected status after failure %+v", s)
	}
}

func TestClient_BackoffCapped(t *testing.T) {
	h := newHarness(t, WithBaseDelay(10*time.Second), WithMaxAttempts(4))
	h.dialer.FailAlways(true)

	h.client.Connect(testURL)

	want := []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, d := range want {
		attempt := i + 1
		h.waitFor(func(s Status) bool { return s.ReconnectAttempts == attempt }, "attempt scheduled")
		h.advance(1, d)
	}
	h.waitFor(func(s Status) bool { return s.Failed }, "terminal failure")

	if got := h.reconnectDelays(); !reflect.DeepEqual(got, want) {
		t.Errorf("scheduled delays = %v, want %v", got, want)
	}
}

func TestClient_AttemptsResetOnOpen(t *testing.T) {
	h := newHarness(t)
	h.dialer.FailNext(2)

	h.client.Connect(testURL)
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "first retry")
	h.advance(1, time.Second)
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 2 }, "second retry")
	h.advance(1, 2*time.Second)

	h.nextConn()
	h.waitOpen()
	if n := h.client.ReconnectAttempts(); n != 0 {
		t.Errorf("ReconnectAttempts after open = %d, want 0", n)
	}

	// The backoff sequence restarts from base after an open.
	h.dialer.FailAlways(true)
	h.dialer.Conns()[0].CloseFromServer()
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "retry after drop")

	delays := h.reconnectDelays()
	if last := delays[len(delays)-1]; last != time.Second {
		t.Errorf("delay after reset = %v, want 1s", last)
	}
}

func TestClient_QueueFlushedInOrderOnOpen(t *testing.T) {
	h := newHarness(t)

	h.client.Send("A")
	h.client.Send("B")
	h.waitFor(func(s Status) bool { return s.Queued == 2 }, "two queued")
	if h.client.State() != StateClosed {
		t.Fatalf("State = %v, want CLOSED", h.client.State())
	}

	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 2 }, "flush")
	if got := conn.Written(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("written = %v, want [A B]", got)
	}
	if q := h.client.Snapshot().Queued; q != 0 {
		t.Errorf("Queued after open = %d, want 0", q)
	}
}

func TestClient_SendWhileOpenIsImmediate(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.client.Send(`{"type":"ADMIN_MESSAGE"}`)
	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 1 }, "write")

	if q := h.client.Snapshot().Queued; q != 0 {
		t.Errorf("Queued = %d, want 0", q)
	}
}

func TestClient_QueuedWhileConnecting(t *testing.T) {
	h := newHarness(t)
	h.dialer.Hold()

	h.client.Connect(testURL)
	h.waitFor(func(s Status) bool { return s.State == StateConnecting }, "connecting")

	for _, m := range []string{"1", "2", "3"} {
		h.client.Send(m)
	}
	h.waitFor(func(s Status) bool { return s.Queued == 3 }, "three queued")

	h.dialer.Release()
	conn := h.nextConn()
	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 3 }, "flush")
	if got := conn.Written(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("written = %v", got)
	}
}

func TestClient_MaxQueueSizeDropsOldest(t *testing.T) {
	h := newHarness(t, WithMaxQueueSize(2))

	h.client.Send("old")
	h.client.Send("mid")
	h.client.Send("new")
	h.waitFor(func(s Status) bool { return s.Queued == 2 }, "bounded queue")

	h.client.Connect(testURL)
	conn := h.nextConn()
	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 2 }, "flush")
	if got := conn.Written(); !reflect.DeepEqual(got, []string{"mid", "new"}) {
		t.Errorf("written = %v, want [mid new]", got)
	}
}

func TestClient_WriteFailureRequeues(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	first := h.nextConn()
	h.waitOpen()

	first.SetWriteError(errors.New("broken pipe"))
	h.client.Send("X")

	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "reconnect scheduled")
	if !first.IsClosed() {
		t.Error("failed connection should be closed")
	}
	if q := h.client.Snapshot().Queued; q != 1 {
		t.Errorf("Queued = %d, want 1", q)
	}

	h.advance(1, time.Second)
	second := h.nextConn()
	testutil.Eventually(t, waitTimeout, func() bool { return len(second.Written()) == 1 }, "replay")
	if got := second.Written(); got[0] != "X" {
		t.Errorf("replayed %v, want [X]", got)
	}
}

func TestClient_InboundMessages(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	conn.Deliver("m1")
	conn.Deliver("m2")
	conn.Deliver("m3")

	h.waitFor(func(s Status) bool { return s.LastMessage == "m3" }, "last message")
	if msg, ok := h.client.LastMessage(); !ok || msg != "m3" {
		t.Errorf("LastMessage() = %q, %v", msg, ok)
	}

	var got []string
	for _, e := range h.hub.PublishedEvents() {
		if e.Type() == events.EventTypeRealtimeMessage {
			p := e.(*events.BaseEvent).Payload.(events.RealtimeMessagePayload)
			got = append(got, p.Data)
			if p.ConnectionID != conn.ID() {
				t.Errorf("ConnectionID = %q, want %q", p.ConnectionID, conn.ID())
			}
		}
	}
	if !reflect.DeepEqual(got, []string{"m1", "m2", "m3"}) {
		t.Errorf("message events = %v", got)
	}
}

func TestClient_HeartbeatSendsPing(t *testing.T) {
	h := newHarness(t, WithPingInterval(30*time.Second), WithPongTimeout(5*time.Second))
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.advance(1, 30*time.Second)
	testutil.Eventually(t, waitTimeout, func() bool {
		w := conn.Written()
		return len(w) == 1 && w[0] == PingPayload
	}, "ping written")
}

func TestClient_PingWriteBoundedByPongTimeout(t *testing.T) {
	h := newHarness(t,
		WithPingInterval(30*time.Second),
		WithPongTimeout(5*time.Second),
		WithWriteTimeout(time.Minute),
	)
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.client.Send("hello")
	h.advance(1, 30*time.Second)
	testutil.Eventually(t, waitTimeout, func() bool {
		return len(conn.WriteBudgets()) == 2
	}, "payload and ping written")

	budgets := conn.WriteBudgets()
	if budgets[0] <= 5*time.Second || budgets[0] > time.Minute {
		t.Errorf("payload write budget = %v, want close to the write timeout", budgets[0])
	}
	if budgets[1] <= 0 || budgets[1] > 5*time.Second {
		t.Errorf("ping write budget = %v, want at most the pong timeout", budgets[1])
	}
}

func TestClient_HeartbeatTimeoutForcesSingleReconnect(t *testing.T) {
	h := newHarness(t, WithPingInterval(30*time.Second), WithPongTimeout(5*time.Second))
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.advance(1, 30*time.Second)
	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 1 }, "ping written")

	// Pong deadline and next ping are both armed.
	h.advance(2, 5*time.Second)

	h.waitFor(func(s Status) bool {
		return s.State == StateClosed && s.ReconnectAttempts == 1
	}, "forced close")
	if !conn.IsClosed() {
		t.Error("connection should be force-closed")
	}
	if n := len(h.reconnectDelays()); n != 1 {
		t.Errorf("scheduled reconnects = %d, want 1", n)
	}
	if n := h.dialer.DialCount(); n != 1 {
		t.Errorf("DialCount before delay = %d, want 1", n)
	}

	h.advance(1, time.Second)
	h.nextConn()
	h.waitOpen()
	if n := len(h.reconnectDelays()); n != 1 {
		t.Errorf("scheduled reconnects = %d, want 1", n)
	}
}

func TestClient_InboundCancelsPongDeadline(t *testing.T) {
	h := newHarness(t, WithPingInterval(30*time.Second), WithPongTimeout(5*time.Second))
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.advance(1, 30*time.Second)
	testutil.Eventually(t, waitTimeout, func() bool { return len(conn.Written()) == 1 }, "ping written")

	// Any message counts, not just an explicit pong.
	conn.Deliver(`{"type":"STATUS_UPDATE"}`)
	h.waitFor(func(s Status) bool { return s.HasMessage }, "message received")

	// Only the ping timer remains.
	h.advance(1, 5*time.Second)
	time.Sleep(20 * time.Millisecond)

	if conn.IsClosed() {
		t.Error("connection must stay open after a message within the deadline")
	}
	if s := h.client.State(); s != StateOpen {
		t.Errorf("State = %v, want OPEN", s)
	}
}

func TestClient_ServerCloseReconnects(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	first := h.nextConn()
	h.waitOpen()

	first.CloseFromServer()
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "reconnect scheduled")

	h.advance(1, time.Second)
	second := h.nextConn()
	h.waitOpen()

	if first == second {
		t.Error("a new handle must be created on reconnect")
	}
	if n := h.client.ReconnectAttempts(); n != 0 {
		t.Errorf("ReconnectAttempts = %d, want 0", n)
	}
}

func TestClient_DisconnectCancelsScheduledReconnect(t *testing.T) {
	h := newHarness(t)
	h.dialer.FailAlways(true)

	h.client.Connect(testURL)
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "reconnect scheduled")

	h.client.Disconnect()

	h.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)

	if n := h.dialer.DialCount(); n != 1 {
		t.Errorf("DialCount = %d, want 1", n)
	}
	s := h.client.Snapshot()
	if s.State != StateClosed || s.Failed {
		t.Errorf("unexpected status %+v", s)
	}
}

// gatedPublisher records events and blocks the actor the first time it
// publishes an event of type holdOn, until release is closed.
type gatedPublisher struct {
	*testutil.MockEventHub
	holdOn  events.EventType
	held    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedPublisher(holdOn events.EventType) *gatedPublisher {
	return &gatedPublisher{
		MockEventHub: testutil.NewMockEventHub(),
		holdOn:       holdOn,
		held:         make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (p *gatedPublisher) Publish(e events.Event) {
	p.MockEventHub.Publish(e)
	if e.Type() == p.holdOn {
		p.once.Do(func() {
			close(p.held)
			<-p.release
		})
	}
}

func TestClient_DisconnectDropsQueuedReconnectFiring(t *testing.T) {
	pub := newGatedPublisher(events.EventTypeRealtimeReconnectScheduled)
	h := newHarness(t, WithPublisher(pub))
	h.dialer.FailAlways(true)

	h.client.Connect(testURL)
	select {
	case <-pub.held:
	case <-time.After(waitTimeout):
		t.Fatal("reconnect was never scheduled")
	}

	// The actor is held right after arming the reconnect timer. Queue the
	// disconnect first, then let the timer fire behind it.
	disconnected := make(chan struct{})
	go func() {
		h.client.Disconnect()
		close(disconnected)
	}()
	testutil.Eventually(t, waitTimeout, func() bool {
		return len(h.client.mailbox) == 1
	}, "disconnect queued")

	h.advance(1, time.Hour)
	testutil.Eventually(t, waitTimeout, func() bool {
		return len(h.client.mailbox) == 2
	}, "reconnect firing queued behind disconnect")

	close(pub.release)
	select {
	case <-disconnected:
	case <-time.After(waitTimeout):
		t.Fatal("Disconnect did not return")
	}

	time.Sleep(20 * time.Millisecond)
	if n := h.dialer.DialCount(); n != 1 {
		t.Errorf("DialCount = %d, want 1", n)
	}
	if s := h.client.Snapshot(); s.State != StateClosed {
		t.Errorf("State = %v, want CLOSED", s.State)
	}
}

func TestClient_DisconnectWhileOpen(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.client.Disconnect()

	if !conn.IsClosed() {
		t.Error("Disconnect must close the connection")
	}
	if s := h.client.State(); s != StateClosed {
		t.Errorf("State = %v, want CLOSED", s)
	}

	h.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if n := h.dialer.DialCount(); n != 1 {
		t.Errorf("DialCount = %d, want 1", n)
	}
	if n := len(h.reconnectDelays()); n != 0 {
		t.Errorf("scheduled reconnects = %d, want 0", n)
	}
}

func TestClient_DisconnectWhileConnecting(t *testing.T) {
	h := newHarness(t)
	h.dialer.Hold()

	h.client.Connect(testURL)
	h.waitFor(func(s Status) bool { return s.State == StateConnecting }, "connecting")

	h.client.Disconnect()
	h.dialer.Release()

	time.Sleep(20 * time.Millisecond)
	if s := h.client.Snapshot(); s.State != StateClosed || s.ReconnectAttempts != 0 {
		t.Errorf("unexpected status %+v", s)
	}
	if n := len(h.reconnectDelays()); n != 0 {
		t.Errorf("scheduled reconnects = %d, want 0", n)
	}
}

func TestClient_ConnectResumesAfterFailure(t *testing.T) {
	h := newHarness(t, WithMaxAttempts(0))
	h.dialer.FailNext(1)

	h.client.Connect(testURL)
	h.waitFor(func(s Status) bool { return s.Failed }, "terminal failure")

	h.client.Connect("")
	h.nextConn()
	h.waitOpen()

	if h.client.Failed() {
		t.Error("Failed() should be cleared after a successful reconnect")
	}
	if got := h.dialer.URLs(); len(got) != 2 || got[1] != testURL {
		t.Errorf("URLs = %v, want the previous url reused", got)
	}
}

func TestClient_ConnectAfterDisconnectReenablesReconnect(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	h.nextConn()
	h.waitOpen()

	h.client.Disconnect()
	h.client.Connect(testURL)
	second := h.nextConn()
	h.waitOpen()

	second.CloseFromServer()
	h.waitFor(func(s Status) bool { return s.ReconnectAttempts == 1 }, "reconnect scheduled")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.client.Connect(testURL)
	conn := h.nextConn()
	h.waitOpen()

	h.client.Close()
	h.client.Close()

	if !conn.IsClosed() {
		t.Error("Close must close the connection")
	}

	// Calls after Close are harmless no-ops.
	h.client.Send("late")
	h.client.Connect(testURL)
	h.client.Disconnect()

	if n := h.dialer.DialCount(); n != 1 {
		t.Errorf("DialCount = %d, want 1", n)
	}
}
