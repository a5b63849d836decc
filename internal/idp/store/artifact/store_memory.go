package artifact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

// InMemoryStore keeps artifact records in process memory for tests/dev.
// Expired records are treated as absent on read; nothing sweeps them.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.PayloadRecord

	// now is injectable for soft-expiry boundary tests.
	now func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewMemory constructs an empty in-memory artifact store.
func NewMemory(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[string]*models.PayloadRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Put(_ context.Context, rec *models.PayloadRecord, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("artifact record with id is required: %w", sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec.Clone()
	now := s.now()
	// Replace semantics: a re-upserted id is a fresh artifact, so any prior
	// consumption stamp goes with it. Only the audit CreatedAt survives.
	if existing, ok := s.records[rec.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now
	if ttl > 0 {
		expires := now.Add(ttl)
		stored.ExpiresAt = &expires
	}
	s.records[rec.ID] = stored
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.PayloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.IsExpired(s.now()) {
		return nil, fmt.Errorf("artifact %s: %w", id, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) GetByUserCode(_ context.Context, userCode string) (*models.PayloadRecord, error) {
	return s.findBy(func(rec *models.PayloadRecord) bool {
		return userCode != "" && rec.UserCode == userCode
	}, "user code "+userCode)
}

func (s *InMemoryStore) GetByUID(_ context.Context, uid string) (*models.PayloadRecord, error) {
	return s.findBy(func(rec *models.PayloadRecord) bool {
		return uid != "" && rec.UID == uid
	}, "uid "+uid)
}

func (s *InMemoryStore) findBy(match func(*models.PayloadRecord) bool, what string) (*models.PayloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	for _, rec := range s.records {
		if match(rec) && !rec.IsExpired(now) {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("artifact by %s: %w", what, sentinel.ErrNotFound)
}

func (s *InMemoryStore) MarkConsumed(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("artifact %s: %w", id, sentinel.ErrNotFound)
	}
	rec.MarkConsumed(now)
	return nil
}

func (s *InMemoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) DeleteByGrantID(_ context.Context, grantID string) (int, error) {
	if grantID == "" {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rec := range s.records {
		if rec.GrantID == grantID {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}
