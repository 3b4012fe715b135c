package ws

import (
	"context"
	"sync"

	"github.com/go-demo/watchroom/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Hub keeps the registry of open room connections
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients by room: roomID -> clients
	rooms map[string]map[*Client]bool

	// Clients by user: userID -> clients (supports multiple tabs)
	users map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				h.unregisterClient(client)
			}
			return
		}
	}
}

// Register adds a client; it reports false when the hub has stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.rooms[client.roomID] == nil {
		h.rooms[client.roomID] = make(map[*Client]bool)
	}
	h.rooms[client.roomID][client] = true

	userID := client.UserID()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Client]bool)
	}
	h.users[userID][client] = true

	metrics.IncWSActive()
	h.logger.Info("Client connected",
		zap.String("user_id", userID),
		zap.String("room_id", client.roomID),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		client.Close()
		return
	}

	delete(h.clients, client)

	userID := client.UserID()
	if userClients, ok := h.users[userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.users, userID)
		}
	}

	if roomClients, ok := h.rooms[client.roomID]; ok {
		delete(roomClients, client)
		if len(roomClients) == 0 {
			delete(h.rooms, client.roomID)
		}
	}

	h.mu.Unlock()

	client.Close()
	metrics.DecWSActive()

	h.logger.Info("Client disconnected",
		zap.String("user_id", userID),
		zap.String("room_id", client.roomID),
	)
}

// RoomClients returns the number of connections watching a room
func (h *Hub) RoomClients(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// IsUserConnected reports whether the user has any open connection
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]int{
		"total_clients": len(h.clients),
		"online_users":  len(h.users),
		"active_rooms":  len(h.rooms),
	}
}
