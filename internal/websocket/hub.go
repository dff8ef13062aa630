// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/config"
	"github.com/tomtom215/portico/internal/events"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/metrics"
	"github.com/tomtom215/portico/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// TokenVerifier validates the token of an auth frame. auth.Middleware
// satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// MessageStore persists chat messages before they are delivered.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
}

// Config holds the per-connection limits.
type Config struct {
	AuthTimeout       time.Duration
	MessagesPerSecond float64
	Burst             int
	MaxMessageBytes   int64
	MaxRoomSize       int
	AllowedOrigins    []string
}

// ConfigFrom maps the websocket config section. origins are the CORS origins
// also accepted for the upgrade.
func ConfigFrom(ws *config.WebSocketConfig, origins []string) Config {
	return Config{
		AuthTimeout:       ws.AuthTimeout,
		MessagesPerSecond: ws.MessagesPerSecond,
		Burst:             ws.Burst,
		MaxMessageBytes:   ws.MaxMessageBytes,
		MaxRoomSize:       ws.MaxRoomSize,
		AllowedOrigins:    origins,
	}
}

func (c Config) withDefaults() Config {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.MaxRoomSize <= 0 {
		c.MaxRoomSize = 8
	}
	return c
}

// Hub tracks connections, presence and video rooms.
//
// All state is guarded by mu, and every send to a client channel happens
// with mu held, so a channel is never written after removeLocked closed it.
type Hub struct {
	cfg      Config
	verifier TokenVerifier
	store    MessageStore

	mu      sync.RWMutex
	clients map[*Client]bool
	users   map[int64]map[*Client]bool
	status  map[int64]string
	rooms   map[string]map[*Client]bool
	stopped bool

	broadcast chan Message
}

// NewHub creates a hub. store may be nil, in which case chat:send is refused.
func NewHub(cfg Config, verifier TokenVerifier, store MessageStore) *Hub {
	return &Hub{
		cfg:       cfg.withDefaults(),
		verifier:  verifier,
		store:     store,
		clients:   make(map[*Client]bool),
		users:     make(map[int64]map[*Client]bool),
		status:    make(map[int64]string),
		rooms:     make(map[string]map[*Client]bool),
		broadcast: make(chan Message, 256),
	}
}

// RunWithContext delivers queued broadcasts until ctx is canceled, then
// closes every connection. Designed for suture supervision; a restart
// accepts connections again.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = false
	h.mu.Unlock()

	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.mu.Lock()
			h.sendAuthenticatedLocked(msg, nil)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// register adds a connection. It fails once the hub has stopped.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = true
	h.updateGaugesLocked()
	logging.Debug().Uint64("conn_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client connected")
	return true
}

// unregister removes a connection. Calling it twice is harmless.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for _, roomID := range c.roomIDs() {
		h.leaveRoomLocked(c, roomID)
	}
	if c.userID != 0 {
		h.detachUserLocked(c)
	}
	close(c.send)
	c.closed = true
	h.updateGaugesLocked()
	logging.Debug().Uint64("conn_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
}

// detachUserLocked drops c from its user's connection set and announces the
// user offline when it was the last one.
func (h *Hub) detachUserLocked(c *Client) {
	conns := h.users[c.userID]
	delete(conns, c)
	if len(conns) > 0 {
		return
	}
	delete(h.users, c.userID)
	delete(h.status, c.userID)
	h.sendAuthenticatedLocked(Message{
		Type: TypePresenceUpdate,
		Data: PresenceUpdate{UserID: c.userID, Online: false},
	}, nil)
}

// closeAllClients closes every connection without presence announcements.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for _, c := range h.sortedClientsLocked() {
		close(c.send)
		c.closed = true
	}
	h.clients = make(map[*Client]bool)
	h.users = make(map[int64]map[*Client]bool)
	h.status = make(map[int64]string)
	h.rooms = make(map[string]map[*Client]bool)
	h.updateGaugesLocked()
}

// authenticate binds c to the claims' user. It returns false when c is
// gone or already authenticated.
func (h *Hub) authenticate(c *Client, claims *auth.Claims) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] || c.userID != 0 {
		return false
	}
	c.userID = claims.UserID
	c.username = claims.Username
	c.authed.Store(true)

	conns := h.users[c.userID]
	first := len(conns) == 0
	if conns == nil {
		conns = make(map[*Client]bool)
		h.users[c.userID] = conns
	}
	conns[c] = true

	h.sendLocked(c, Message{Type: TypeAuthOK, Data: AuthOK{
		UserID: c.userID,
		ConnID: c.id,
		Online: h.presenceLocked(),
	}})
	if first {
		h.sendAuthenticatedLocked(Message{
			Type: TypePresenceUpdate,
			Data: PresenceUpdate{UserID: c.userID, Online: true},
		}, c)
	}
	h.updateGaugesLocked()
	return true
}

// setStatus stores a free-text status and announces it.
func (h *Hub) setStatus(c *Client, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] || c.userID == 0 {
		return
	}
	h.status[c.userID] = status
	h.sendAuthenticatedLocked(Message{
		Type: TypePresenceUpdate,
		Data: PresenceUpdate{UserID: c.userID, Online: true, Status: status},
	}, nil)
}

// deliverChat fans a stored message out. Direct messages reach every
// connection of sender and recipient; channel messages reach everyone.
func (h *Hub) deliverChat(msg ChatMessage) {
	out := Message{Type: TypeChatMessage, Data: msg}
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.RecipientID == nil {
		h.sendAuthenticatedLocked(out, nil)
		return
	}
	h.sendUserLocked(msg.SenderID, out)
	if *msg.RecipientID != msg.SenderID {
		h.sendUserLocked(*msg.RecipientID, out)
	}
}

// PublishChat delivers a message that was stored through the HTTP API.
func (h *Hub) PublishChat(m models.Message, senderName string) {
	h.deliverChat(ChatMessage{Message: m, SenderName: senderName})
}

// callUser rings every connection of the callee.
func (h *Hub) callUser(c *Client, toUserID int64, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if toUserID == c.userID {
		return frameError{code: CodeInvalid, message: "cannot call yourself"}
	}
	if len(h.users[toUserID]) == 0 {
		return frameError{code: CodeUserOffline, message: "user is not online"}
	}
	h.sendUserLocked(toUserID, Message{Type: TypeIncomingCall, Data: IncomingCall{
		FromUserID:   c.userID,
		FromUsername: c.username,
		RoomID:       roomID,
	}})
	return nil
}

// reply queues msg for c alone.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(c, msg)
}

// sendLocked queues msg without blocking. A full queue means the peer
// stopped reading; its connection is closed and the read loop unregisters it.
func (h *Hub) sendLocked(c *Client, msg Message) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		metrics.WSMessagesSent.Inc()
		return true
	default:
		metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
		logging.Warn().Uint64("conn_id", c.id).Int64("user_id", c.userID).Msg("websocket send buffer full, closing connection")
		c.kick()
		return false
	}
}

func (h *Hub) sendUserLocked(userID int64, msg Message) {
	for _, c := range sortClients(h.users[userID]) {
		h.sendLocked(c, msg)
	}
}

// sendAuthenticatedLocked sends to every authenticated connection except skip.
func (h *Hub) sendAuthenticatedLocked(msg Message, skip *Client) {
	for _, c := range h.sortedClientsLocked() {
		if c == skip || c.userID == 0 {
			continue
		}
		h.sendLocked(c, msg)
	}
}

func (h *Hub) sortedClientsLocked() []*Client {
	return sortClients(h.clients)
}

func (h *Hub) updateGaugesLocked() {
	metrics.WSConnections.Set(float64(len(h.clients)))
	metrics.WSOnlineUsers.Set(float64(len(h.users)))
	metrics.WSRooms.Set(float64(len(h.rooms)))
}

func (h *Hub) presenceLocked() []models.PresenceEntry {
	out := make([]models.PresenceEntry, 0, len(h.users))
	for id, conns := range h.users {
		out = append(out, models.PresenceEntry{
			UserID:      id,
			Online:      true,
			Status:      h.status[id],
			Connections: len(conns),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Presence lists the online users ordered by id.
func (h *Hub) Presence() []models.PresenceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presenceLocked()
}

// IsOnline reports whether the user has at least one authenticated connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// GetClientCount returns the number of open connections, authenticated or not.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of active video rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// DisconnectUser closes every connection of a user. Used when an account is
// deactivated or deleted.
func (h *Hub) DisconnectUser(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := sortClients(h.users[userID])
	for _, c := range conns {
		c.kick()
	}
	return len(conns)
}

// BroadcastJSON queues a frame for every authenticated connection.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastEvent forwards a domain event as an "event" frame.
func (h *Hub) BroadcastEvent(ev events.Event) {
	h.BroadcastJSON(TypeEvent, ev)
}

// sortClients orders connections by id so fan-out is deterministic.
func sortClients(m map[*Client]bool) []*Client {
	out := make([]*Client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
