package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayloadRecord(t *testing.T) {
	now := time.Now()

	t.Run("lifts secondary keys out of the payload", func(t *testing.T) {
		rec := NewPayloadRecord(KindAccessToken, "tok-1", Payload{
			"grantId":  "grant-1",
			"userCode": "WDJB-MJHT",
			"uid":      "uid-1",
			"jti":      "tok-1",
		}, time.Hour, now)

		assert.Equal(t, "grant-1", rec.GrantID)
		assert.Equal(t, "WDJB-MJHT", rec.UserCode)
		assert.Equal(t, "uid-1", rec.UID)
	})

	t.Run("zero ttl means no expiry", func(t *testing.T) {
		rec := NewPayloadRecord(KindSession, "sess-1", Payload{}, 0, now)
		assert.Nil(t, rec.ExpiresAt)
		assert.False(t, rec.IsExpired(now.Add(100*365*24*time.Hour)))
	})

	t.Run("positive ttl sets the soft-expiry boundary", func(t *testing.T) {
		rec := NewPayloadRecord(KindAuthorizationCode, "code-1", Payload{}, time.Minute, now)
		require.NotNil(t, rec.ExpiresAt)
		assert.False(t, rec.IsExpired(now.Add(59*time.Second)))
		assert.True(t, rec.IsExpired(now.Add(time.Minute)), "record is absent at exactly ttl")
		assert.True(t, rec.IsExpired(now.Add(2*time.Minute)))
	})
}

func TestPayloadRecordConsumption(t *testing.T) {
	now := time.Now()

	t.Run("consumed marker merges into the engine payload", func(t *testing.T) {
		rec := NewPayloadRecord(KindAuthorizationCode, "code-1", Payload{"jti": "code-1"}, time.Minute, now)
		assert.Nil(t, rec.EnginePayload()["consumed"])

		rec.MarkConsumed(now)
		out := rec.EnginePayload()
		assert.Equal(t, true, out["consumed"])
		assert.Equal(t, "code-1", out["jti"])
		// stored payload stays pristine
		assert.Nil(t, rec.Payload["consumed"])
	})

	t.Run("nil payload still carries the marker", func(t *testing.T) {
		rec := NewPayloadRecord(KindAuthorizationCode, "code-1", nil, time.Minute, now)
		rec.MarkConsumed(now)
		assert.Equal(t, Payload{"consumed": true}, rec.EnginePayload())
		assert.Nil(t, rec.Payload)
	})

	t.Run("second MarkConsumed keeps the first timestamp", func(t *testing.T) {
		rec := NewPayloadRecord(KindAuthorizationCode, "code-1", Payload{}, time.Minute, now)
		rec.MarkConsumed(now)
		first := *rec.ConsumedAt
		rec.MarkConsumed(now.Add(time.Second))
		assert.Equal(t, first, *rec.ConsumedAt)
	})
}

func TestPayloadRecordClone(t *testing.T) {
	now := time.Now()
	rec := NewPayloadRecord(KindRefreshToken, "rt-1", Payload{"grantId": "g"}, time.Hour, now)

	clone := rec.Clone()
	clone.Payload["grantId"] = "other"
	clone.MarkConsumed(now)

	assert.Equal(t, "g", rec.Payload["grantId"])
	assert.Nil(t, rec.ConsumedAt)
}

func TestKindIsValid(t *testing.T) {
	assert.True(t, KindDeviceCode.IsValid())
	assert.True(t, KindClient.IsValid())
	assert.False(t, Kind("Unknown").IsValid())
}
