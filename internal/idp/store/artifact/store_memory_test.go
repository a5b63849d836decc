package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.now = time.Now()
	s.store = NewMemory(WithClock(func() time.Time { return s.now }))
}

func (s *MemoryStoreSuite) record(kind models.Kind, id string, payload models.Payload) *models.PayloadRecord {
	return models.NewPayloadRecord(kind, id, payload, 0, s.now)
}

func (s *MemoryStoreSuite) TestPutAndGetByID() {
	ctx := context.Background()

	s.Run("round-trips a stored record", func() {
		rec := s.record(models.KindAccessToken, "tok-1", models.Payload{"jti": "tok-1", "grantId": "g1"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		found, err := s.store.GetByID(ctx, "tok-1")
		s.Require().NoError(err)
		s.Equal("tok-1", found.ID)
		s.Equal("g1", found.GrantID)
		s.Equal(models.Payload{"jti": "tok-1", "grantId": "g1"}, found.Payload)
	})

	s.Run("unknown id returns ErrNotFound", func() {
		_, err := s.store.GetByID(ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned record is isolated from the stored one", func() {
		rec := s.record(models.KindSession, "sess-1", models.Payload{"uid": "u1"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		found, err := s.store.GetByID(ctx, "sess-1")
		s.Require().NoError(err)
		found.Payload["uid"] = "tampered"

		again, err := s.store.GetByID(ctx, "sess-1")
		s.Require().NoError(err)
		s.Equal("u1", again.Payload["uid"])
	})
}

// TestSoftExpiryBoundary pins the read semantics around expires_at: present
// strictly before the boundary, absent at and after it, never deleted.
func (s *MemoryStoreSuite) TestSoftExpiryBoundary() {
	ctx := context.Background()
	rec := s.record(models.KindAuthorizationCode, "code-1", models.Payload{})
	s.Require().NoError(s.store.Put(ctx, rec, time.Minute))

	s.now = s.now.Add(59 * time.Second)
	_, err := s.store.GetByID(ctx, "code-1")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Second)
	_, err = s.store.GetByID(ctx, "code-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// later reads stay absent; the record is not resurrected
	s.now = s.now.Add(time.Hour)
	_, err = s.store.GetByID(ctx, "code-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestPutWithoutTTLNeverExpires() {
	ctx := context.Background()
	rec := s.record(models.KindSession, "sess-1", models.Payload{})
	s.Require().NoError(s.store.Put(ctx, rec, 0))

	s.now = s.now.Add(365 * 24 * time.Hour)
	_, err := s.store.GetByID(ctx, "sess-1")
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestPutRefreshesTTL() {
	ctx := context.Background()
	rec := s.record(models.KindInteraction, "int-1", models.Payload{"uid": "u1"})
	s.Require().NoError(s.store.Put(ctx, rec, time.Minute))

	s.now = s.now.Add(50 * time.Second)
	s.Require().NoError(s.store.Put(ctx, rec, time.Minute))

	s.now = s.now.Add(50 * time.Second)
	_, err := s.store.GetByID(ctx, "int-1")
	s.Require().NoError(err, "second Put must refresh the expiry window")
}

func (s *MemoryStoreSuite) TestSecondaryLookups() {
	ctx := context.Background()

	s.Run("finds device codes by user code", func() {
		rec := s.record(models.KindDeviceCode, "dev-1", models.Payload{"userCode": "WDJB-MJHT"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		found, err := s.store.GetByUserCode(ctx, "WDJB-MJHT")
		s.Require().NoError(err)
		s.Equal("dev-1", found.ID)
	})

	s.Run("finds sessions by uid", func() {
		rec := s.record(models.KindSession, "sess-1", models.Payload{"uid": "u1"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		found, err := s.store.GetByUID(ctx, "u1")
		s.Require().NoError(err)
		s.Equal("sess-1", found.ID)
	})

	s.Run("expired records are absent via secondary keys too", func() {
		rec := s.record(models.KindDeviceCode, "dev-2", models.Payload{"userCode": "AAAA-BBBB"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Minute))

		s.now = s.now.Add(2 * time.Minute)
		_, err := s.store.GetByUserCode(ctx, "AAAA-BBBB")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("empty secondary key never matches", func() {
		rec := s.record(models.KindAccessToken, "tok-1", models.Payload{})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		_, err := s.store.GetByUserCode(ctx, "")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestMarkConsumed() {
	ctx := context.Background()

	s.Run("stamps once and keeps the record readable", func() {
		rec := s.record(models.KindAuthorizationCode, "code-1", models.Payload{"jti": "code-1"})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		s.Require().NoError(s.store.MarkConsumed(ctx, "code-1", s.now))

		found, err := s.store.GetByID(ctx, "code-1")
		s.Require().NoError(err)
		s.Require().NotNil(found.ConsumedAt)
		s.Equal(true, found.EnginePayload()["consumed"])
	})

	s.Run("is idempotent and keeps the first stamp", func() {
		rec := s.record(models.KindAuthorizationCode, "code-2", models.Payload{})
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

		s.Require().NoError(s.store.MarkConsumed(ctx, "code-2", s.now))
		first := s.now
		s.Require().NoError(s.store.MarkConsumed(ctx, "code-2", s.now.Add(time.Second)))

		found, err := s.store.GetByID(ctx, "code-2")
		s.Require().NoError(err)
		s.Equal(first, *found.ConsumedAt)
	})

	s.Run("missing id returns ErrNotFound for the caller to downgrade", func() {
		err := s.store.MarkConsumed(ctx, "missing", s.now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestDeleteByID() {
	ctx := context.Background()
	rec := s.record(models.KindRefreshToken, "rt-1", models.Payload{})
	s.Require().NoError(s.store.Put(ctx, rec, time.Hour))

	s.Require().NoError(s.store.DeleteByID(ctx, "rt-1"))
	_, err := s.store.GetByID(ctx, "rt-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// idempotent
	s.Require().NoError(s.store.DeleteByID(ctx, "rt-1"))
}

// TestDeleteByGrantID pins cascade revocation: the whole token family goes,
// unrelated records stay.
func (s *MemoryStoreSuite) TestDeleteByGrantID() {
	ctx := context.Background()

	family := []*models.PayloadRecord{
		s.record(models.KindAccessToken, "at-1", models.Payload{"grantId": "g1"}),
		s.record(models.KindAccessToken, "at-2", models.Payload{"grantId": "g1"}),
		s.record(models.KindAccessToken, "at-3", models.Payload{"grantId": "g1"}),
		s.record(models.KindRefreshToken, "rt-1", models.Payload{"grantId": "g1"}),
	}
	for _, rec := range family {
		s.Require().NoError(s.store.Put(ctx, rec, time.Hour))
	}
	other := s.record(models.KindAccessToken, "at-other", models.Payload{"grantId": "g2"})
	s.Require().NoError(s.store.Put(ctx, other, time.Hour))
	noGrant := s.record(models.KindSession, "sess-1", models.Payload{})
	s.Require().NoError(s.store.Put(ctx, noGrant, time.Hour))

	deleted, err := s.store.DeleteByGrantID(ctx, "g1")
	s.Require().NoError(err)
	s.Equal(4, deleted)

	for _, rec := range family {
		_, err := s.store.GetByID(ctx, rec.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	}

	_, err = s.store.GetByID(ctx, "at-other")
	s.Require().NoError(err)
	_, err = s.store.GetByID(ctx, "sess-1")
	s.Require().NoError(err)

	// empty grant id deletes nothing, including records without a grant
	deleted, err = s.store.DeleteByGrantID(ctx, "")
	s.Require().NoError(err)
	s.Zero(deleted)
}
