package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantScopeAccumulation(t *testing.T) {
	now := time.Now()
	grant, err := NewGrant("grant-1", "user-42", "c1", now)
	require.NoError(t, err)

	grant.AddScope([]string{"openid", "profile"}, now)
	assert.Equal(t, "openid profile", grant.ScopeString())

	// overlapping resubmission grows the set, never duplicates or shrinks
	grant.AddScope([]string{"openid", "profile", "email"}, now.Add(time.Second))
	assert.Equal(t, []string{"openid", "profile", "email"}, grant.Scope)

	grant.AddScope([]string{"openid"}, now.Add(2*time.Second))
	assert.Equal(t, []string{"openid", "profile", "email"}, grant.Scope)
}

func TestNewGrantInvariants(t *testing.T) {
	now := time.Now()
	_, err := NewGrant("", "user", "client", now)
	assert.Error(t, err)
	_, err = NewGrant("id", "", "client", now)
	assert.Error(t, err)
	_, err = NewGrant("id", "user", "", now)
	assert.Error(t, err)
}

func TestGrantRecordRoundTrip(t *testing.T) {
	now := time.Now()
	grant, err := NewGrant("grant-1", "user-42", "c1", now)
	require.NoError(t, err)
	grant.AddScope([]string{"openid", "profile"}, now)

	rec := NewPayloadRecord(KindGrant, grant.ID, grant.EnginePayload(), time.Hour, now)
	decoded, err := GrantFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, grant.ID, decoded.ID)
	assert.Equal(t, grant.AccountID, decoded.AccountID)
	assert.Equal(t, grant.ClientID, decoded.ClientID)
	assert.Equal(t, grant.Scope, decoded.Scope)
}

func TestGrantFromRecordRejectsForeignPayload(t *testing.T) {
	rec := NewPayloadRecord(KindGrant, "grant-1", Payload{"scope": "openid"}, 0, time.Now())
	_, err := GrantFromRecord(rec)
	assert.Error(t, err)
}
