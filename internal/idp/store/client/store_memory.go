package client

import (
	"context"
	"fmt"
	"sync"

	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

// InMemoryRegistry serves a fixed set of client registrations for tests/dev.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
}

// NewMemory constructs a registry pre-seeded with the given clients.
func NewMemory(clients ...*models.Client) *InMemoryRegistry {
	r := &InMemoryRegistry{clients: make(map[string]*models.Client, len(clients))}
	for _, c := range clients {
		if c != nil && c.ClientID != "" {
			r.clients[c.ClientID] = c
		}
	}
	return r
}

// Seed adds or replaces a registration. Test helper; production
// registrations come through the portal's admin side.
func (r *InMemoryRegistry) Seed(c *models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ClientID] = c
}

func (r *InMemoryRegistry) FindByClientID(_ context.Context, clientID string) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	clone := *c
	clone.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	clone.GrantTypes = append([]string(nil), c.GrantTypes...)
	clone.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	return &clone, nil
}
