//go:build integration

package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/artifact"
	"oidcbridge/internal/platform/postgres"
	"oidcbridge/pkg/platform/sentinel"
	"oidcbridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	now   time.Time
	store *artifact.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = artifact.NewPostgres(s.pg.DB,
		artifact.WithPostgresClock(func() time.Time { return s.now }))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func (s *PostgresStoreSuite) putArtifact(id string, payload models.Payload, ttl time.Duration) {
	rec := models.NewPayloadRecord(models.KindAuthorizationCode, id, payload, 0, s.now)
	s.Require().NoError(s.store.Put(s.ctx, rec, ttl))
}

func (s *PostgresStoreSuite) TestPutAndGet() {
	s.putArtifact("code-1", models.Payload{"grantId": "g1", "redirectUri": "https://rp.example.com/cb"}, time.Minute)

	got, err := s.store.GetByID(s.ctx, "code-1")
	s.Require().NoError(err)
	s.Equal("code-1", got.ID)
	s.Equal(models.KindAuthorizationCode, got.Kind)
	s.Equal("g1", got.GrantID)
	s.Equal("https://rp.example.com/cb", got.Payload["redirectUri"])
}

func (s *PostgresStoreSuite) TestSoftExpiryBoundary() {
	s.putArtifact("code-exp", models.Payload{}, time.Minute)

	s.now = s.now.Add(59 * time.Second)
	_, err := s.store.GetByID(s.ctx, "code-exp")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Second)
	_, err = s.store.GetByID(s.ctx, "code-exp")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestReplaceResetsConsumption() {
	s.putArtifact("code-r", models.Payload{"n": "1"}, time.Minute)
	s.Require().NoError(s.store.MarkConsumed(s.ctx, "code-r", s.now))

	got, err := s.store.GetByID(s.ctx, "code-r")
	s.Require().NoError(err)
	s.Require().NotNil(got.ConsumedAt)

	s.putArtifact("code-r", models.Payload{"n": "2"}, time.Minute)
	got, err = s.store.GetByID(s.ctx, "code-r")
	s.Require().NoError(err)
	s.Nil(got.ConsumedAt)
	s.Equal("2", got.Payload["n"])
}

func (s *PostgresStoreSuite) TestMarkConsumedKeepsFirstStamp() {
	s.putArtifact("code-c", models.Payload{}, time.Minute)

	first := s.now
	s.Require().NoError(s.store.MarkConsumed(s.ctx, "code-c", first))
	s.Require().NoError(s.store.MarkConsumed(s.ctx, "code-c", first.Add(10*time.Second)))

	got, err := s.store.GetByID(s.ctx, "code-c")
	s.Require().NoError(err)
	s.Require().NotNil(got.ConsumedAt)
	s.True(got.ConsumedAt.Equal(first))
}

func (s *PostgresStoreSuite) TestMarkConsumedMissing() {
	err := s.store.MarkConsumed(s.ctx, "ghost", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSecondaryLookups() {
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

	_, err = s.store.GetByUserCode(s.ctx, "")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteByGrantID() {
	for _, id := range []string{"at-1", "at-2", "rt-1"} {
		s.putArtifact(id, models.Payload{"grantId": "g-family"}, time.Minute)
	}
	s.putArtifact("at-other", models.Payload{"grantId": "g-other"}, time.Minute)

	deleted, err := s.store.DeleteByGrantID(s.ctx, "g-family")
	s.Require().NoError(err)
	s.Equal(3, deleted)

	_, err = s.store.GetByID(s.ctx, "at-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetByID(s.ctx, "at-other")
	s.Require().NoError(err)

	deleted, err = s.store.DeleteByGrantID(s.ctx, "g-family")
	s.Require().NoError(err)
	s.Equal(0, deleted)
}

func (s *PostgresStoreSuite) TestTxRunnerRollsBackOnError() {
	runner := postgres.NewTxRunner(s.pg.DB)

	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		rec := models.NewPayloadRecord(models.KindGrant, "g-tx", models.Payload{"accountId": "a", "clientId": "c"}, 0, s.now)
		if err := s.store.Put(ctx, rec, 0); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().Error(err)

	_, err = s.store.GetByID(s.ctx, "g-tx")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTxRunnerCommits() {
	runner := postgres.NewTxRunner(s.pg.DB)

	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		grant := models.NewPayloadRecord(models.KindGrant, "g-ok", models.Payload{"accountId": "a", "clientId": "c"}, 0, s.now)
		if err := s.store.Put(ctx, grant, 0); err != nil {
			return err
		}
		in := models.NewPayloadRecord(models.KindInteraction, "itx-ok", models.Payload{"uid": "uid-ok"}, 0, s.now)
		return s.store.Put(ctx, in, time.Minute)
	})
	s.Require().NoError(err)

	_, err = s.store.GetByID(s.ctx, "g-ok")
	s.Require().NoError(err)
	_, err = s.store.GetByUID(s.ctx, "uid-ok")
	s.Require().NoError(err)
}
