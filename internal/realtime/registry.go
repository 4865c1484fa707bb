package realtime

import (
	"sync"
)

// AdminRegistry is the set of connection ids known to belong to admin sessions.
// In-memory only: a restart loses all entries, and they are rebuilt as admin
// connections re-authenticate.
type AdminRegistry struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewAdminRegistry creates an empty registry.
func NewAdminRegistry() *AdminRegistry {
	return &AdminRegistry{ids: make(map[string]struct{})}
}

// Register adds a connection id. Idempotent.
func (r *AdminRegistry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[connID] = struct{}{}
}

// Unregister removes a connection id. Idempotent; absent ids are a no-op.
func (r *AdminRegistry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, connID)
}

// List returns a snapshot of the currently registered ids.
func (r *AdminRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	return ids
}
