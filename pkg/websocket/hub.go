package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// Message is what clients receive, one per update.
type Message struct {
	Type    string        `json:"type"`
	Payload models.Update `json:"payload"`
}

// Hub fans updates out to connected websocket clients. It is a dispatcher
// subscriber; a client that cannot keep up is disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	common.GetLoggerWith(common.LoggerNameWebsocket).
		Info("WebSocket client registered", zap.String("remote", c.remote))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		common.GetLoggerWith(common.LoggerNameWebsocket).
			Info("WebSocket client unregistered", zap.String("remote", c.remote))
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Deliver(ctx context.Context, u models.Update) error {
	message, err := json.Marshal(Message{Type: "update", Payload: u})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(u.SensorID) {
			continue
		}
		select {
		case c.send <- message:
		default:
			common.GetLoggerWith(common.LoggerNameWebsocket).
				Warn("WebSocket client send buffer full, removing", zap.String("remote", c.remote))
			delete(h.clients, c)
			close(c.send)
		}
	}
	return nil
}

// Close disconnects all clients and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
