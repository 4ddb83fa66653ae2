package services

import (
	"sync"
)

// Registry maps an authenticated identity to its live connection, so events
// can be addressed to a user directly regardless of which session rooms they
// joined. At most one handle per identity: a reconnect overwrites the
// previous entry.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Register records or overwrites the live client for an identity.
func (r *Registry) Register(identity string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[identity] = c
}

// Unregister removes the entry whose current handle is c. The scan is by
// handle, not identity: the disconnect of a stale connection must not evict
// a newer registration for the same identity.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for identity, current := range r.clients {
		if current == c {
			delete(r.clients, identity)
			return
		}
	}
}

// AddressOf returns the live client for identity, or nil when the identity
// is offline. Absence is not an error; callers tolerate no-delivery.
func (r *Registry) AddressOf(identity string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[identity]
}

// Connected reports how many identities currently have a live handle.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
