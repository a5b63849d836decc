// Package artifact persists the opaque authorization-flow artifacts the
// external engine round-trips through the adapter facade: codes, tokens,
// sessions, device codes, grants and interaction records.
package artifact

import (
	"context"
	"time"

	"oidcbridge/internal/idp/models"
)

// Error Contract:
// All store methods follow this pattern:
//   - Reads return (nil, wrapped sentinel.ErrNotFound) when the record does
//     not exist or is past its soft-expiry boundary; expiry is evaluated
//     lazily on read, never by a sweeping timer.
//   - Deletes are idempotent; removing an absent id is not an error.
//   - Infrastructure failures are returned wrapped with context and must
//     never be masked as absence.
type Store interface {
	// Put inserts or replaces the record by id. A ttl of zero stores the
	// record without expiry.
	Put(ctx context.Context, rec *models.PayloadRecord, ttl time.Duration) error

	GetByID(ctx context.Context, id string) (*models.PayloadRecord, error)
	GetByUserCode(ctx context.Context, userCode string) (*models.PayloadRecord, error)
	GetByUID(ctx context.Context, uid string) (*models.PayloadRecord, error)

	// MarkConsumed stamps the record's first redemption time. The record
	// stays readable so replay can be detected.
	MarkConsumed(ctx context.Context, id string, now time.Time) error

	DeleteByID(ctx context.Context, id string) error

	// DeleteByGrantID removes every record in a grant's token family and
	// returns how many were deleted.
	DeleteByGrantID(ctx context.Context, grantID string) (int, error)
}
