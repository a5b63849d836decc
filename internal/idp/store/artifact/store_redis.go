package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

const (
	recordKeyPrefix   = "idp:artifact:"
	userCodeKeyPrefix = "idp:usercode:"
	uidKeyPrefix      = "idp:uid:"
	grantKeyPrefix    = "idp:grant:"
)

// storedRecord is the JSON envelope persisted per artifact. Redis TTLs give
// hard expiry for free; expires_at is still carried so the soft-expiry
// contract holds for records written without a TTL.
type storedRecord struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Payload    models.Payload `json:"payload"`
	GrantID    string         `json:"grant_id,omitempty"`
	UserCode   string         `json:"user_code,omitempty"`
	UID        string         `json:"uid,omitempty"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	ConsumedAt *time.Time     `json:"consumed_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RedisStore is the production artifact store for deployments where flow
// state must be shared across instances without a relational database.
type RedisStore struct {
	client  redis.Cmdable
	metrics *metrics.Metrics
	now     func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the store's time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

// WithRedisMetrics attaches latency instrumentation.
func WithRedisMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// NewRedis constructs a Redis-backed artifact store. The client lifecycle
// is managed externally.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Put(ctx context.Context, rec *models.PayloadRecord, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("artifact record with id is required: %w", sentinel.ErrInvalidState)
	}
	defer s.metrics.ObserveArtifactOp("put", s.now())

	// Replace semantics need the prior envelope: created_at survives the
	// replace and pointer keys that no longer apply must be dropped.
	var prior *storedRecord
	prev, err := s.client.Get(ctx, recordKeyPrefix+rec.ID).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return fmt.Errorf("put artifact %s: %w", rec.ID, err)
	default:
		var p storedRecord
		if err := json.Unmarshal(prev, &p); err != nil {
			return fmt.Errorf("decode artifact %s: %w", rec.ID, err)
		}
		prior = &p
	}

	now := s.now()
	stored := storedRecord{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		Payload:   rec.Payload,
		GrantID:   rec.GrantID,
		UserCode:  rec.UserCode,
		UID:       rec.UID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prior != nil {
		stored.CreatedAt = prior.CreatedAt
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		stored.ExpiresAt = &expires
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", rec.ID, err)
	}

	pipe := s.client.TxPipeline()
	if prior != nil {
		if prior.UserCode != "" && prior.UserCode != rec.UserCode {
			pipe.Del(ctx, userCodeKeyPrefix+prior.UserCode)
		}
		if prior.UID != "" && prior.UID != rec.UID {
			pipe.Del(ctx, uidKeyPrefix+prior.UID)
		}
		if prior.GrantID != "" && prior.GrantID != rec.GrantID {
			pipe.SRem(ctx, grantKeyPrefix+prior.GrantID, rec.ID)
		}
	}
	pipe.Set(ctx, recordKeyPrefix+rec.ID, body, ttl)
	if rec.UserCode != "" {
		pipe.Set(ctx, userCodeKeyPrefix+rec.UserCode, rec.ID, ttl)
	}
	if rec.UID != "" {
		pipe.Set(ctx, uidKeyPrefix+rec.UID, rec.ID, ttl)
	}
	if rec.GrantID != "" {
		pipe.SAdd(ctx, grantKeyPrefix+rec.GrantID, rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put artifact %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_id", s.now())
	return s.load(ctx, id, "id "+id)
}

func (s *RedisStore) GetByUserCode(ctx context.Context, userCode string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_user_code", s.now())
	return s.loadVia(ctx, userCodeKeyPrefix+userCode, "user code "+userCode)
}

func (s *RedisStore) GetByUID(ctx context.Context, uid string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_uid", s.now())
	return s.loadVia(ctx, uidKeyPrefix+uid, "uid "+uid)
}

func (s *RedisStore) loadVia(ctx context.Context, pointerKey, what string) (*models.PayloadRecord, error) {
	id, err := s.client.Get(ctx, pointerKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("artifact by %s: %w", what, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve artifact by %s: %w", what, err)
	}
	return s.load(ctx, id, what)
}

func (s *RedisStore) load(ctx context.Context, id, what string) (*models.PayloadRecord, error) {
	body, err := s.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("artifact by %s: %w", what, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact by %s: %w", what, err)
	}

	var stored storedRecord
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	rec := stored.toRecord()
	if rec.IsExpired(s.now()) {
		return nil, fmt.Errorf("artifact by %s: %w", what, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (r storedRecord) toRecord() *models.PayloadRecord {
	return &models.PayloadRecord{
		ID:         r.ID,
		Kind:       models.Kind(r.Kind),
		Payload:    r.Payload,
		GrantID:    r.GrantID,
		UserCode:   r.UserCode,
		UID:        r.UID,
		ExpiresAt:  r.ExpiresAt,
		ConsumedAt: r.ConsumedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (s *RedisStore) MarkConsumed(ctx context.Context, id string, now time.Time) error {
	defer s.metrics.ObserveArtifactOp("mark_consumed", s.now())

	key := recordKeyPrefix + id
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("artifact %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark artifact %s consumed: %w", id, err)
	}

	var stored storedRecord
	if err := json.Unmarshal(body, &stored); err != nil {
		return fmt.Errorf("decode artifact %s: %w", id, err)
	}
	if stored.ConsumedAt == nil {
		stored.ConsumedAt = &now
	}
	stored.UpdatedAt = now

	updated, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", id, err)
	}
	// KeepTTL preserves the remaining expiry window set at Put time.
	if err := s.client.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("mark artifact %s consumed: %w", id, err)
	}
	return nil
}

func (s *RedisStore) DeleteByID(ctx context.Context, id string) error {
	defer s.metrics.ObserveArtifactOp("delete_by_id", s.now())

	body, err := s.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}

	var stored storedRecord
	if err := json.Unmarshal(body, &stored); err != nil {
		return fmt.Errorf("decode artifact %s: %w", id, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKeyPrefix+id)
	if stored.UserCode != "" {
		pipe.Del(ctx, userCodeKeyPrefix+stored.UserCode)
	}
	if stored.UID != "" {
		pipe.Del(ctx, uidKeyPrefix+stored.UID)
	}
	if stored.GrantID != "" {
		pipe.SRem(ctx, grantKeyPrefix+stored.GrantID, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) DeleteByGrantID(ctx context.Context, grantID string) (int, error) {
	defer s.metrics.ObserveArtifactOp("delete_by_grant_id", s.now())
	if grantID == "" {
		return 0, nil
	}

	ids, err := s.client.SMembers(ctx, grantKeyPrefix+grantID).Result()
	if err != nil {
		return 0, fmt.Errorf("list grant %s artifacts: %w", grantID, err)
	}

	deleted := 0
	for _, id := range ids {
		// Reuse DeleteByID so pointer keys are cleaned alongside records.
		exists, err := s.client.Exists(ctx, recordKeyPrefix+id).Result()
		if err != nil {
			return deleted, fmt.Errorf("check grant %s artifact %s: %w", grantID, id, err)
		}
		if exists == 0 {
			continue
		}
		if err := s.DeleteByID(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := s.client.Del(ctx, grantKeyPrefix+grantID).Err(); err != nil {
		return deleted, fmt.Errorf("drop grant %s index: %w", grantID, err)
	}
	return deleted, nil
}
