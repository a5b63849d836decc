//go:build integration

package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/artifact"
	"oidcbridge/pkg/platform/sentinel"
	"oidcbridge/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	now   time.Time
	store *artifact.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.store = artifact.NewRedis(s.redis.Client,
		artifact.WithRedisClock(func() time.Time { return s.now }))
}

func (s *RedisStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) put(id string, payload models.Payload, ttl time.Duration) {
	rec := models.NewPayloadRecord(models.KindAccessToken, id, payload, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, rec, ttl))
}

func (s *RedisStoreSuite) TestPutAndGet() {
	s.put("at-1", models.Payload{"grantId": "g1", "jti": "at-1"}, time.Minute)

	got, err := s.store.GetByID(s.ctx, "at-1")
	s.Require().NoError(err)
	s.Equal("at-1", got.ID)
	s.Equal("g1", got.GrantID)
	s.Equal("at-1", got.Payload["jti"])
}

func (s *RedisStoreSuite) TestMissingIsNotFound() {
	_, err := s.store.GetByID(s.ctx, "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSecondaryLookups() {
	rec := models.NewPayloadRecord(models.KindDeviceCode, "dev-1", models.Payload{
		"userCode": "WDJB-MJHT",
		"uid":      "uid-77",
	}, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, rec, time.Minute))

	byCode, err := s.store.GetByUserCode(s.ctx, "WDJB-MJHT")
	s.Require().NoError(err)
	s.Equal("dev-1", byCode.ID)

	byUID, err := s.store.GetByUID(s.ctx, "uid-77")
	s.Require().NoError(err)
	s.Equal("dev-1", byUID.ID)
}

func (s *RedisStoreSuite) TestReplaceRetargetsPointers() {
	rec := models.NewPayloadRecord(models.KindDeviceCode, "dev-1", models.Payload{
		"userCode": "AAAA-BBBB",
		"uid":      "uid-old",
		"grantId":  "g-old",
	}, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, rec, time.Minute))
	createdAt := s.now

	s.now = s.now.Add(10 * time.Second)
	replaced := models.NewPayloadRecord(models.KindDeviceCode, "dev-1", models.Payload{
		"userCode": "CCCC-DDDD",
		"uid":      "uid-new",
		"grantId":  "g-new",
	}, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, replaced, time.Minute))

	// The old secondary keys must not resolve the record anymore.
	_, err := s.store.GetByUserCode(s.ctx, "AAAA-BBBB")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetByUID(s.ctx, "uid-old")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	byCode, err := s.store.GetByUserCode(s.ctx, "CCCC-DDDD")
	s.Require().NoError(err)
	s.Equal("dev-1", byCode.ID)
	s.True(byCode.CreatedAt.Equal(createdAt), "created_at survives the replace")

	// The record left the old grant family entirely.
	deleted, err := s.store.DeleteByGrantID(s.ctx, "g-old")
	s.Require().NoError(err)
	s.Zero(deleted)
	_, err = s.store.GetByID(s.ctx, "dev-1")
	s.Require().NoError(err)
}

func (s *RedisStoreSuite) TestMarkConsumedKeepsFirstStampAndTTL() {
	s.put("at-c", models.Payload{}, time.Minute)

	first := s.now
	s.Require().NoError(s.store.MarkConsumed(s.ctx, "at-c", first))
	s.Require().NoError(s.store.MarkConsumed(s.ctx, "at-c", first.Add(10*time.Second)))

	got, err := s.store.GetByID(s.ctx, "at-c")
	s.Require().NoError(err)
	s.Require().NotNil(got.ConsumedAt)
	s.True(got.ConsumedAt.Equal(first))

	// The record key must still expire with its original window.
	ttl, err := s.redis.Client.TTL(s.ctx, "idp:artifact:at-c").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisStoreSuite) TestMarkConsumedMissing() {
	err := s.store.MarkConsumed(s.ctx, "ghost", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDeleteCleansPointers() {
	rec := models.NewPayloadRecord(models.KindDeviceCode, "dev-del", models.Payload{
		"userCode": "AAAA-BBBB",
		"uid":      "uid-del",
		"grantId":  "g-del",
	}, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, rec, time.Minute))

	s.Require().NoError(s.store.DeleteByID(s.ctx, "dev-del"))

	for _, key := range []string{
		"idp:artifact:dev-del",
		"idp:usercode:AAAA-BBBB",
		"idp:uid:uid-del",
	} {
		exists, err := s.redis.Client.Exists(s.ctx, key).Result()
		s.Require().NoError(err)
		s.Zero(exists, key)
	}

	// Delete of an absent id stays a no-op.
	s.Require().NoError(s.store.DeleteByID(s.ctx, "dev-del"))
}

func (s *RedisStoreSuite) TestDeleteByGrantID() {
	for _, id := range []string{"at-1", "at-2", "rt-1"} {
		s.put(id, models.Payload{"grantId": "g-family"}, time.Minute)
	}
	s.put("at-other", models.Payload{"grantId": "g-other"}, time.Minute)

	deleted, err := s.store.DeleteByGrantID(s.ctx, "g-family")
	s.Require().NoError(err)
	s.Equal(3, deleted)

	_, err = s.store.GetByID(s.ctx, "rt-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetByID(s.ctx, "at-other")
	s.Require().NoError(err)

	deleted, err = s.store.DeleteByGrantID(s.ctx, "g-family")
	s.Require().NoError(err)
	s.Equal(0, deleted)
}
