package realtime

import "github.com/eapache/queue"

// outbox holds payloads sent while the connection is not open.
// It is owned by the client's actor goroutine and is not safe for concurrent use.
type outbox struct {
	q       *queue.Queue
	max     int
	dropped int
}

func newOutbox(max int) *outbox {
	return &outbox{q: queue.New(), max: max}
}

// push appends payload and reports whether the oldest entry was evicted to make room.
func (o *outbox) push(payload string) bool {
	evicted := false
	if o.max > 0 && o.q.Length() >= o.max {
		o.q.Remove()
		o.dropped++
		evicted = true
	}
	o.q.Add(payload)
	return evicted
}

func (o *outbox) peek() string {
	return o.q.Peek().(string)
}

func (o *outbox) pop() {
	o.q.Remove()
}

func (o *outbox) len() int {
	return o.q.Length()
}
