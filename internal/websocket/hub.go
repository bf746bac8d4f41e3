package websocket

import (
	"sync"
)

// Notification is one push to a connected account: a balance change, a trade
// event, an incoming gift. Delivery is best-effort; the core never blocks on
// a slow or absent session.
type Notification struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	h.clients[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

// Push sends to every live session of the account; a no-op when none is
// connected, and slow clients are skipped rather than waited on.
func (h *Hub) Push(accountID string, notification Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[accountID] {
		select {
		case client.send <- notification:
		default:
		}
	}
}

// Reachable reports whether the account has at least one live session.
func (h *Hub) Reachable(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID]) > 0
}
