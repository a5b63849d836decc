// Package adapter implements the per-artifact-kind persistence contract the
// external authorization-flow engine is constructed with. One adapter
// instance exists per artifact kind; all of them dispatch to the shared
// artifact store except the Client kind, which reads from the
// administratively-owned registry and structurally cannot write.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/artifact"
	"oidcbridge/pkg/platform/audit"
	"oidcbridge/pkg/platform/sentinel"
)

// Adapter is the uniform contract the flow engine calls for one artifact
// kind.
//
// Absence contract: Find/FindByUserCode/FindByUID return (nil, nil) when the
// artifact does not exist or has soft-expired; the engine treats that as
// "never issued". Infrastructure failures are never masked as absence.
// Consume, Destroy and RevokeByGrantID are successful no-ops against absent
// ids so revocation and cleanup stay idempotent under retries.
type Adapter interface {
	// Upsert inserts or replaces the artifact. A zero expiresIn stores it
	// without expiry.
	Upsert(ctx context.Context, id string, payload models.Payload, expiresIn time.Duration) error

	Find(ctx context.Context, id string) (models.Payload, error)
	FindByUserCode(ctx context.Context, userCode string) (models.Payload, error)
	FindByUID(ctx context.Context, uid string) (models.Payload, error)

	Consume(ctx context.Context, id string) error
	Destroy(ctx context.Context, id string) error
	RevokeByGrantID(ctx context.Context, grantID string) error
}

// artifactAdapter serves every kind except Client.
type artifactAdapter struct {
	kind    models.Kind
	store   artifact.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	now     func() time.Time
}

func (a *artifactAdapter) Upsert(ctx context.Context, id string, payload models.Payload, expiresIn time.Duration) error {
	rec := models.NewPayloadRecord(a.kind, id, payload, 0, a.now())
	return a.store.Put(ctx, rec, expiresIn)
}

func (a *artifactAdapter) Find(ctx context.Context, id string) (models.Payload, error) {
	return asEnginePayload(a.store.GetByID(ctx, id))
}

func (a *artifactAdapter) FindByUserCode(ctx context.Context, userCode string) (models.Payload, error) {
	return asEnginePayload(a.store.GetByUserCode(ctx, userCode))
}

func (a *artifactAdapter) FindByUID(ctx context.Context, uid string) (models.Payload, error) {
	return asEnginePayload(a.store.GetByUID(ctx, uid))
}

// asEnginePayload translates the store's absence sentinel into the engine's
// nil-result contract and merges the consumed marker for redeemed
// artifacts.
func asEnginePayload(rec *models.PayloadRecord, err error) (models.Payload, error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.EnginePayload(), nil
}

func (a *artifactAdapter) Consume(ctx context.Context, id string) error {
	err := a.store.MarkConsumed(ctx, id, a.now())
	if errors.Is(err, sentinel.ErrNotFound) {
		// Idempotency headroom: consuming an already-gone artifact is fine,
		// the engine will see it as absent on the next find.
		a.logger.WarnContext(ctx, "consume on absent artifact",
			"kind", string(a.kind),
			"id", id,
		)
		return nil
	}
	return err
}

func (a *artifactAdapter) Destroy(ctx context.Context, id string) error {
	return a.store.DeleteByID(ctx, id)
}

func (a *artifactAdapter) RevokeByGrantID(ctx context.Context, grantID string) error {
	deleted, err := a.store.DeleteByGrantID(ctx, grantID)
	if err != nil {
		return err
	}
	if deleted > 0 {
		a.metrics.IncGrantsRevoked()
		a.logger.InfoContext(ctx, "revoked grant token family",
			"kind", string(a.kind),
			"grant_id", grantID,
			"deleted", deleted,
		)
		if err := a.audit.Publish(ctx, audit.Event{
			Action:    audit.ActionGrantRevoked,
			Timestamp: a.now(),
			GrantID:   grantID,
		}); err != nil {
			a.logger.WarnContext(ctx, "audit publish failed",
				"action", string(audit.ActionGrantRevoked),
				"grant_id", grantID,
				"error", err,
			)
		}
	}
	return nil
}
