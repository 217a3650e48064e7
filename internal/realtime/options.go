package realtime

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/transport"
)

const (
	DefaultBaseDelay    = time.Second
	DefaultMaxAttempts  = 10
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 5 * time.Second

	// MaxReconnectDelay caps every computed backoff delay.
	MaxReconnectDelay = 30 * time.Second

	// PingPayload is sent on every heartbeat tick.
	PingPayload = "ping"
)

// Options configures a Client.
type Options struct {
	BaseDelay    time.Duration
	MaxAttempts  int
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxQueueSize bounds the outbound queue; 0 means unbounded.
	MaxQueueSize int

	Dialer    transport.Dialer
	Clock     clockwork.Clock
	Publisher ports.EventPublisher
	Logger    zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		BaseDelay:    DefaultBaseDelay,
		MaxAttempts:  DefaultMaxAttempts,
		PingInterval: DefaultPingInterval,
		PongTimeout:  DefaultPongTimeout,
		WriteTimeout: transport.DefaultWriteTimeout,
		Dialer:       transport.NewWebSocketDialer(),
		Clock:        clockwork.NewRealClock(),
		Publisher:    nopPublisher{},
		Logger:       log.With().Str("component", "realtime").Logger(),
	}
}

// WithBaseDelay sets the base reconnect delay.
func WithBaseDelay(d time.Duration) Option {
	return func(o *Options) { o.BaseDelay = d }
}

// WithMaxAttempts sets how many reconnects are scheduled before giving up.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithPingInterval sets the heartbeat period.
func WithPingInterval(d time.Duration) Option {
	return func(o *Options) { o.PingInterval = d }
}

// WithPongTimeout sets how long to wait for any inbound message after a ping.
func WithPongTimeout(d time.Duration) Option {
	return func(o *Options) { o.PongTimeout = d }
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithMaxQueueSize bounds the outbound queue, dropping the oldest entry when full.
func WithMaxQueueSize(n int) Option {
	return func(o *Options) { o.MaxQueueSize = n }
}

// WithDialer replaces the connection dialer.
func WithDialer(d transport.Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

// WithClock replaces the clock used for backoff and heartbeat timers.
func WithClock(c clockwork.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithPublisher sets where state changes and inbound messages are published.
func WithPublisher(p ports.EventPublisher) Option {
	return func(o *Options) { o.Publisher = p }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}
