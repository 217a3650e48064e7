// Package app orchestrates the admin console: realtime client, event hub,
// conversation store, snapshot and the human-facing feed.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/config"
	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/domain/events"
	"github.com/brianly1003/radmin/internal/hub"
	"github.com/brianly1003/radmin/internal/realtime"
	"github.com/brianly1003/radmin/internal/sync"
	"github.com/brianly1003/radmin/internal/transport"
)

const (
	// fetchTimeout bounds the initial conversation load.
	fetchTimeout = 10 * time.Second

	consoleSubscriberID = "console-feed"
	consoleBufferSize   = 512
)

// App is the admin console.
type App struct {
	cfg     *config.Config
	version string

	hub      *hub.Hub
	client   *realtime.Client
	store    *dashboard.Store
	snapshot *dashboard.Snapshot
	feed     *slog.Logger

	dialer     transport.Dialer
	httpClient *http.Client

	// Session info
	sessionID string

	mu      sync.RWMutex
	running bool
}

// Option configures an App.
type Option func(*App)

// WithFeed sets the logger that renders the human-facing feed.
func WithFeed(l *slog.Logger) Option {
	return func(a *App) { a.feed = l }
}

// WithDialer overrides the realtime transport dialer.
func WithDialer(d transport.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// WithHTTPClient sets the client used for the initial conversation fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// New creates a new App instance.
func New(cfg *config.Config, version string, opts ...Option) *App {
	a := &App{
		cfg:        cfg,
		version:    version,
		hub:        hub.New(),
		sessionID:  uuid.New().String(),
		httpClient: http.DefaultClient,
	}
	a.store = dashboard.NewStore(a.hub)
	for _, opt := range opts {
		opt(a)
	}
	if a.feed == nil {
		a.feed = NewFeedLogger(io.Discard, false, slog.LevelInfo)
	}
	if a.dialer == nil {
		a.dialer = DialerFor(cfg.Client)
	}
	return a
}

// DialerFor builds the WebSocket dialer described by cfg.
func DialerFor(cfg config.ClientConfig) transport.Dialer {
	return &transport.WebSocketDialer{
		HandshakeTimeout: cfg.HandshakeTimeout(),
		WriteTimeout:     cfg.WriteTimeout(),
	}
}

// ClientOptions maps the client section of the config to realtime options.
func ClientOptions(cfg config.ClientConfig) []realtime.Option {
	return []realtime.Option{
		realtime.WithBaseDelay(cfg.ReconnectBase()),
		realtime.WithMaxAttempts(cfg.MaxReconnectAttempts),
		realtime.WithPingInterval(cfg.PingInterval()),
		realtime.WithPongTimeout(cfg.PongTimeout()),
		realtime.WithWriteTimeout(cfg.WriteTimeout()),
		realtime.WithMaxQueueSize(cfg.MaxQueueSize),
	}
}

// SessionID returns the console session identifier.
func (a *App) SessionID() string {
	return a.sessionID
}

// Store returns the conversation store.
func (a *App) Store() *dashboard.Store {
	return a.store
}

// Client returns the realtime client. It is nil before Start.
func (a *App) Client() *realtime.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// Start runs the console until ctx is cancelled. Lines read from input
// of the form "<conversationID> <text>" are sent as admin messages; input
// may be nil.
func (a *App) Start(ctx context.Context, input io.Reader) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	logSub := hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(logSub)

	feedSub := hub.NewChannelSubscriber(consoleSubscriberID, consoleBufferSize)
	a.hub.Subscribe(feedSub)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		a.consume(feedSub)
	}()

	a.loadInitial(ctx)

	opts := append(ClientOptions(a.cfg.Client),
		realtime.WithDialer(a.dialer),
		realtime.WithPublisher(storeApplier{store: a.store, next: a.hub}),
	)
	client := realtime.New(opts...)
	a.mu.Lock()
	a.client = client
	a.mu.Unlock()

	log.Info().
		Str("version", a.version).
		Str("session_id", a.sessionID).
		Str("url", a.cfg.Client.URL).
		Msg("admin console starting")

	client.Connect(a.cfg.Client.URL)

	if input != nil {
		go a.readInput(ctx, input)
	}

	<-ctx.Done()

	client.Close()
	a.saveSnapshot()
	_ = a.hub.Stop()
	<-feedDone

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("admin console stopped")
	return nil
}

// SendAdmin sends an admin message into a conversation. It is queued when
// the connection is not open.
func (a *App) SendAdmin(conversationID, text string) error {
	payload, err := dashboard.NewAdminMessage(conversationID, text, a.cfg.Dashboard.SenderID)
	if err != nil {
		return err
	}

	client := a.Client()
	if client == nil {
		return fmt.Errorf("console is not running")
	}
	client.Send(payload)
	return nil
}

// loadInitial fills the store from the snapshot and then the HTTP API.
func (a *App) loadInitial(ctx context.Context) {
	if path := a.cfg.Dashboard.SnapshotPath; path != "" {
		snap, err := dashboard.OpenSnapshot(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to open snapshot")
		} else {
			a.snapshot = snap
			convs, status, err := snap.Load()
			if err != nil {
				log.Warn().Err(err).Msg("failed to load snapshot")
			} else if len(convs) > 0 {
				a.store.Replace(convs)
				a.store.SetStatus(status)
				a.feed.Info("restored snapshot", "conversations", len(convs))
			}
		}
	}

	if a.cfg.Dashboard.APIURL == "" {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	convs, err := dashboard.FetchConversations(fetchCtx, a.httpClient, a.cfg.Dashboard.APIURL)
	if err != nil {
		log.Warn().Err(err).Str("api_url", a.cfg.Dashboard.APIURL).Msg("initial conversation fetch failed")
		return
	}
	a.store.Replace(convs)
	a.feed.Info("loaded conversations", "count", len(convs))
	for _, c := range a.store.Conversations() {
		a.feed.Info(conversationLine(c), conversationAttrs(c)...)
	}
}

func (a *App) saveSnapshot() {
	if a.snapshot == nil {
		return
	}
	if err := a.snapshot.SaveStore(a.store); err != nil {
		log.Warn().Err(err).Msg("failed to save snapshot")
	} else {
		log.Debug().Str("path", a.snapshot.Path()).Msg("snapshot saved")
	}
	_ = a.snapshot.Close()
}

// consume renders hub events. Delivery to it is best effort; the store is
// fed by storeApplier instead.
func (a *App) consume(sub *hub.ChannelSubscriber) {
	for event := range sub.Events() {
		renderEvent(a.feed, event)
	}
}

func (a *App) readInput(ctx context.Context, input io.Reader) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		convID, text, err := ParseInputLine(line)
		if err != nil {
			a.feed.Warn("cannot send", "input", line, "error", err)
			continue
		}
		if err := a.SendAdmin(convID, text); err != nil {
			a.feed.Warn("cannot send", "conversation", convID, "error", err)
			continue
		}
		a.feed.Info("admin message queued", "conversation", convID)
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("input read failed")
	}
}

// ParseInputLine splits "<conversationID> <text>".
func ParseInputLine(line string) (conversationID, text string, err error) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx <= 0 {
		return "", "", fmt.Errorf("expected \"<conversationID> <text>\"")
	}
	conversationID = line[:idx]
	text = strings.TrimSpace(line[idx+1:])
	if text == "" {
		return "", "", fmt.Errorf("expected \"<conversationID> <text>\"")
	}
	return conversationID, text, nil
}
