// Package realtime pushes balance changes to connected clients over WebSocket.
package realtime

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/features/ledger"
)

// Hub tracks the open connections per child.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connections returns the number of open connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// PublishBalance sends b to every connection of its child.
// A client whose buffer is full misses the update.
func (h *Hub) PublishBalance(b ledger.Balance) {
	payload, err := json.Marshal(b)
	if err != nil {
		log.WithError(err).WithField("user_id", b.UserID).Error("Failed to encode balance update")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[b.UserID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
