package realtime

// ConnState is the state of the client's current connection handle.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Status is a point-in-time view of the client's reactive outputs.
type Status struct {
	State             ConnState
	ReconnectAttempts int
	// Failed is set once reconnect attempts are exhausted and cleared by Connect.
	Failed      bool
	LastMessage string
	HasMessage  bool
	Queued      int
}
