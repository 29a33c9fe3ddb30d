package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"langmod/server/common/log"
)

// WSClient is one connected moderation dashboard.
type WSClient struct {
	ChatID string
	Conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *WSClient) WriteJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(payload)
}

// Hub fans moderation events out to dashboards. A client subscribed
// with an empty ChatID receives events for every chat.
type Hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: map[*WSClient]struct{}{}}
}

func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.Conn.Close()
}

// ModerationEvent is the wire shape pushed to dashboards.
type ModerationEvent struct {
	Kind       string    `json:"kind"`
	ChatID     string    `json:"chat_id"`
	UserID     int64     `json:"user_id,omitempty"`
	ActionType string    `json:"action_type,omitempty"`
	Text       string    `json:"text,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h *Hub) Broadcast(event ModerationEvent) {
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		if client.ChatID == "" || client.ChatID == event.ChatID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.WriteJSON(event); err != nil {
			log.Warnf("push event to dashboard for chat %q: %v", client.ChatID, err)
			h.Unregister(client)
		}
	}
}
