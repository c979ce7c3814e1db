// Package ws maintains per-user WebSocket connections so clients with a live
// session still see an alert whose push delivery failed.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/models"
)

const maxConnsPerUser = 10

// Hub manages WebSocket connections keyed by user id.
type Hub struct {
	connections map[string]map[*websocket.Conn]bool // userID -> set of connections
	mutex       sync.Mutex
	logger      *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a connection for a user.
func (h *Hub) AddConnection(userID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[userID]; !exists {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[userID]) >= maxConnsPerUser {
		h.logger.Warnf("Max connections reached for user %s", userID)
		return
	}
	h.connections[userID][conn] = true
	h.logger.Infof("Added WebSocket connection for user %s (total: %d)", userID, len(h.connections[userID]))
}

// RemoveConnection drops a connection for a user.
func (h *Hub) RemoveConnection(userID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
		h.logger.Infof("Removed WebSocket connection for user %s (remaining: %d)", userID, len(conns))
	}
}

// Publish pushes a stored notification to every open connection of its
// recipient. Connections that fail to write are dropped.
func (h *Hub) Publish(n models.FallbackNotification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Errorf("Failed to marshal notification %s: %v", n.ID, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns, exists := h.connections[n.RecipientID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to send WebSocket message to user %s: %v", n.RecipientID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, n.RecipientID)
	}
}
