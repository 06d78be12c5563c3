package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"hail/internal/service"
)

// Hub tracks connected rider/driver sockets and routes notification events
// to them. Implements service.Pusher; a slow or gone client is dropped, not
// waited on.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	log        *zap.Logger
}

var _ service.Pusher = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run processes client registrations. Meant to be started once, in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("ws client connected",
				zap.String("user_id", client.UserID),
				zap.String("role", client.Role))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Info("ws client disconnected",
				zap.String("user_id", client.UserID))
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Push delivers a notification event to every connection held by its
// addressee. Undeliverable events are dropped; the state transition that
// produced them has already committed.
func (h *Hub) Push(event service.NotificationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal notification event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.UserID != event.ToUserID || client.Role != event.ToRole {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.log.Warn("ws send buffer full, dropping event",
				zap.String("user_id", event.ToUserID),
				zap.String("type", string(event.Type)))
		}
	}
}
