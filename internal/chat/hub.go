package chat

import (
	"context"
	"sync"
)

// Hub hands out one Manager per user, creating it (and loading its history)
// on first use.
type Hub struct {
	mu       sync.Mutex
	managers map[string]*Manager
	store    MessageStore
	commands CommandClient
}

func NewHub(store MessageStore, commands CommandClient) *Hub {
	return &Hub{
		managers: make(map[string]*Manager),
		store:    store,
		commands: commands,
	}
}

// Manager returns the user's manager, creating it on first access.
func (h *Hub) Manager(ctx context.Context, userID string) *Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.managers[userID]; ok {
		return m
	}
	m := NewManager(ctx, userID, h.store, h.commands)
	h.managers[userID] = m
	return m
}
