package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

type MemoryRegistrySuite struct {
	suite.Suite
	registry *InMemoryRegistry
}

func TestMemoryRegistrySuite(t *testing.T) {
	suite.Run(t, new(MemoryRegistrySuite))
}

func (s *MemoryRegistrySuite) SetupTest() {
	s.registry = NewMemory(&models.Client{
		ClientID:                "c1",
		Name:                    "Portal Dashboard",
		RedirectURIs:            []string{"https://portal.example.com/cb"},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		Scope:                   "openid profile email",
		TokenEndpointAuthMethod: "client_secret_basic",
	})
}

func (s *MemoryRegistrySuite) TestFindByClientID() {
	s.Run("returns registered client", func() {
		c, err := s.registry.FindByClientID(context.Background(), "c1")
		s.Require().NoError(err)
		s.Equal("Portal Dashboard", c.Name)
		s.Equal([]string{"https://portal.example.com/cb"}, c.RedirectURIs)
	})

	s.Run("unknown client returns ErrNotFound", func() {
		_, err := s.registry.FindByClientID(context.Background(), "ghost")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned client is isolated from the stored one", func() {
		c, err := s.registry.FindByClientID(context.Background(), "c1")
		s.Require().NoError(err)
		c.RedirectURIs[0] = "https://evil.example.com/cb"

		again, err := s.registry.FindByClientID(context.Background(), "c1")
		s.Require().NoError(err)
		s.Equal("https://portal.example.com/cb", again.RedirectURIs[0])
	})
}

func (s *MemoryRegistrySuite) TestSecretVerification() {
	hash, err := models.HashClientSecret("s3cret")
	s.Require().NoError(err)
	s.registry.Seed(&models.Client{ClientID: "c2", Name: "Backend", ClientSecretHash: hash})

	c, err := s.registry.FindByClientID(context.Background(), "c2")
	s.Require().NoError(err)
	s.True(c.IsConfidential())
	s.True(c.VerifySecret("s3cret"))
	s.False(c.VerifySecret("wrong"))

	public, err := s.registry.FindByClientID(context.Background(), "c1")
	s.Require().NoError(err)
	s.False(public.IsConfidential())
	s.False(public.VerifySecret("anything"))
}
