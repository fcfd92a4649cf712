package cart

import (
	"context"
	"sync"
)

// Manager hands out one Cart per customer session, loading it from the KV
// store on first use. Carts are injected into the engines that need them
// rather than reached through a global.
type Manager struct {
	kv KV

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewManager creates a manager over the given KV store.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv, carts: make(map[string]*Cart)}
}

// Cart returns the cart for a session, loading it if this is the first time
// the session is seen by this process.
func (m *Manager) Cart(ctx context.Context, sessionID string) *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.carts[sessionID]; ok {
		return c
	}
	c := Load(ctx, m.kv, storageKey(sessionID))
	m.carts[sessionID] = c
	return c
}

// Evict drops a session's cart from the in-process cache. The persisted blob
// is untouched.
func (m *Manager) Evict(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
}

func storageKey(sessionID string) string {
	return "cart:" + sessionID
}
