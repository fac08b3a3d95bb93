// Package push delivers push notifications to connected clients over
// websockets and tracks device registrations.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of push message.
type MessageType string

const (
	MessageSyncOrgKeys MessageType = "sync_org_keys"
	MessageLogOut      MessageType = "log_out"
	MessagePong        MessageType = "pong"
)

// Message is the envelope written to clients.
type Message struct {
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub tracks connected clients per user and fans messages out to them.
type Hub struct {
	mu          sync.RWMutex
	userClients map[uuid.UUID]map[*Client]struct{}
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		userClients: make(map[uuid.UUID]map[*Client]struct{}),
		logger:      logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userClients[c.UserID] == nil {
		h.userClients[c.UserID] = make(map[*Client]struct{})
	}
	h.userClients[c.UserID][c] = struct{}{}
	h.logger.Debug("push client connected", "user_id", c.UserID, "client_id", c.ID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userClients[c.UserID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.userClients, c.UserID)
	}
	h.logger.Debug("push client disconnected", "user_id", c.UserID, "client_id", c.ID)
}

// ConnectedCount returns how many clients a user has connected.
func (h *Hub) ConnectedCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

// SendToUser queues a message for every client of a user. Clients whose
// buffers are full are skipped.
func (h *Hub) SendToUser(userID uuid.UUID, msgType MessageType, payload map[string]any) error {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.userClients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("push client buffer full, dropping message",
				"user_id", userID, "client_id", c.ID, "type", msgType)
		}
	}
	return nil
}

// reply queues a message for one client if it is still registered.
func (h *Hub) reply(c *Client, msgType MessageType) {
	data, err := json.Marshal(Message{Type: msgType, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.userClients[c.UserID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// PushSyncOrgKeys asks the user's clients to refresh organization keys.
func (h *Hub) PushSyncOrgKeys(_ context.Context, userID uuid.UUID) error {
	return h.SendToUser(userID, MessageSyncOrgKeys, map[string]any{"userId": userID})
}

// PushLogOut asks the user's clients to end their sessions.
func (h *Hub) PushLogOut(_ context.Context, userID uuid.UUID) error {
	return h.SendToUser(userID, MessageLogOut, map[string]any{"userId": userID})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userClients {
		for c := range clients {
			close(c.send)
		}
		delete(h.userClients, userID)
	}
}
