// Package mockserver implements a development backend for the admin
// console: a conversation list over HTTP and an admin WebSocket that pushes
// conversation and status updates.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/domain/ports"
	"github.com/brianly1003/radmin/internal/sync"
)

// AdminPath is the admin WebSocket endpoint.
const AdminPath = "/ws/admin"

// Server is the mock admin backend.
type Server struct {
	addr   string
	server *http.Server
	router *mux.Router
	hub    ports.EventHub
	store  *dashboard.Store
	clock  clockwork.Clock

	allowedOrigins []string
	upgrader       websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for message timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithConversations seeds the server with convs instead of the defaults.
func WithConversations(convs []dashboard.Conversation) Option {
	return func(s *Server) { s.store.Replace(convs) }
}

// WithAllowedOrigins restricts which browser origins may open the admin
// socket. See originPolicy for the matching rules.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// NewServer creates a mock server. Conversation and status changes are
// published on hub, which must be started by the caller.
func NewServer(host string, port int, hub ports.EventHub, opts ...Option) *Server {
	s := &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		hub:     hub,
		store:   dashboard.NewStore(hub),
		clock:   clockwork.NewRealClock(),
		clients: make(map[string]*Client),
	}
	s.store.Replace(SeedConversations(time.Now().UTC()))
	for _, opt := range opts {
		opt(s)
	}
	s.store.SetStatus(dashboard.SystemStatus{BotOnline: true, LLMOnline: true})

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginPolicy(host, s.allowedOrigins).check,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc(dashboard.ConversationsPath, s.handleListConversations).Methods("GET")
	router.HandleFunc(AdminPath, s.handleWebSocket)
	s.router = router

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}
	return s
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start starts listening in the background.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("mock server starting")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("mock server error")
		}
	}()
	return nil
}

// Stop closes all admin sockets and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("mock server stopping")
	s.CloseClients()
	return s.server.Shutdown(ctx)
}

// CloseClients drops every connected admin socket.
func (s *Server) CloseClients() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// ClientCount returns the number of connected admin sockets.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Store exposes the server's conversation state.
func (s *Server) Store() *dashboard.Store {
	return s.store
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "radmin-mock",
		"admins":    s.ClientCount(),
		"timestamp": s.clock.Now().Unix(),
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Conversations())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, s.handleMessage, s.removeClient)

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Subscribe(NewClientSubscriber(client))
	}

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("admin connected")

	client.Start()
	s.publishStatus()
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	_, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if s.hub != nil {
		s.hub.Unsubscribe(id)
	}
	log.Info().Str("client_id", id).Msg("admin disconnected")
	s.publishStatus()
}

func (s *Server) publishStatus() {
	status := s.store.Status()
	status.ActiveUsers = s.ClientCount()
	s.store.SetStatus(status)
}

// handleMessage processes one inbound text message from an admin socket.
func (s *Server) handleMessage(client *Client, message []byte) {
	if string(message) == "ping" {
		client.Send([]byte(dashboard.PongPayload))
		return
	}

	msg, err := dashboard.ParseAdminMessage(message)
	if err != nil {
		log.Warn().Err(err).Str("client_id", client.ID()).Msg("ignoring admin message")
		return
	}

	// Update publishes conversation_updated, which every admin socket receives.
	conv, ok := s.store.Update(msg.ConversationID, func(c *dashboard.Conversation) {
		*c = c.WithMessage(dashboard.Message{
			ID:        uuid.New().String(),
			Sender:    dashboard.SenderAdmin,
			Text:      msg.Message,
			Timestamp: s.clock.Now().UTC(),
		})
		c.UnreadCount = 0
	})
	if !ok {
		log.Warn().
			Str("client_id", client.ID()).
			Str("conversation_id", msg.ConversationID).
			Msg("admin message for unknown conversation")
		return
	}

	log.Debug().
		Str("conversation_id", conv.ID).
		Str("sender_id", msg.SenderID).
		Msg("admin message applied")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}
