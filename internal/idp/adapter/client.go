package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/client"
	"oidcbridge/pkg/platform/sentinel"
)

// clientAdapter serves the Client kind from the read-only registry. The
// registry interface has no write methods, so the mutating half of the
// engine contract is a set of documented no-ops rather than a runtime
// type check.
type clientAdapter struct {
	registry client.Registry
	logger   *slog.Logger
}

// Upsert is a no-op: client registrations are managed through the portal's
// admin side. Dynamic-registration attempts from the engine are dropped
// (and logged, since silence here has bitten people before).
func (a *clientAdapter) Upsert(ctx context.Context, id string, _ models.Payload, _ time.Duration) error {
	a.logger.WarnContext(ctx, "dropping client upsert; registrations are administratively managed",
		"client_id", id,
	)
	return nil
}

func (a *clientAdapter) Find(ctx context.Context, id string) (models.Payload, error) {
	c, err := a.registry.FindByClientID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.EnginePayload(), nil
}

// FindByUserCode never matches: client registrations have no device codes.
func (a *clientAdapter) FindByUserCode(context.Context, string) (models.Payload, error) {
	return nil, nil
}

// FindByUID never matches: client registrations are not interaction-linked.
func (a *clientAdapter) FindByUID(context.Context, string) (models.Payload, error) {
	return nil, nil
}

// Consume is a no-op: registrations are not single-use artifacts.
func (a *clientAdapter) Consume(context.Context, string) error { return nil }

// Destroy is a no-op: client deletion is an administrative action.
func (a *clientAdapter) Destroy(context.Context, string) error { return nil }

// RevokeByGrantID is a no-op: registrations do not belong to grants.
func (a *clientAdapter) RevokeByGrantID(context.Context, string) error { return nil }
