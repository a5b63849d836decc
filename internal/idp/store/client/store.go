// Package client resolves relying-party registrations. The registry is
// intentionally read-only from the flow side: registrations are owned by
// the portal's admin screens, so dynamic client registration attempts have
// nothing to write through.
package client

import (
	"context"

	"oidcbridge/internal/idp/models"
)

// Registry is the read-only clientId -> registration lookup. Reads follow
// the store error contract: unknown clients return a wrapped
// sentinel.ErrNotFound, infrastructure failures propagate.
type Registry interface {
	FindByClientID(ctx context.Context, clientID string) (*models.Client, error)
}
