package models

import (
	"time"
)

// Kind tags the artifact type stored in a PayloadRecord. The flow engine
// constructs one adapter per kind; the set below is closed.
type Kind string

const (
	KindAuthorizationCode Kind = "AuthorizationCode"
	KindAccessToken       Kind = "AccessToken"
	KindRefreshToken      Kind = "RefreshToken"
	KindSession           Kind = "Session"
	KindInteraction       Kind = "Interaction"
	KindGrant             Kind = "Grant"
	KindDeviceCode        Kind = "DeviceCode"
	KindClientCredentials Kind = "ClientCredentials"
	KindBackchannelAuth   Kind = "BackchannelAuthenticationRequest"
	KindPushedAuthRequest Kind = "PushedAuthorizationRequest"
	// KindClient is special-cased by the adapter layer: clients are managed
	// administratively and never written through the flow engine.
	KindClient Kind = "Client"
)

// IsValid reports whether k is one of the known artifact kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindAuthorizationCode, KindAccessToken, KindRefreshToken, KindSession,
		KindInteraction, KindGrant, KindDeviceCode, KindClientCredentials,
		KindBackchannelAuth, KindPushedAuthRequest, KindClient:
		return true
	}
	return false
}

// Payload is the opaque, engine-owned body of a stored artifact. This
// subsystem copies it verbatim; the only keys it ever reads are the
// secondary-index hints below and, for Interaction/Grant kinds, the typed
// views in interaction.go and grant.go.
type Payload map[string]any

// Secondary-index keys the engine places inside artifact payloads.
const (
	payloadKeyGrantID  = "grantId"
	payloadKeyUserCode = "userCode"
	payloadKeyUID      = "uid"
)

func (p Payload) stringKey(key string) string {
	v, ok := p[key].(string)
	if !ok {
		return ""
	}
	return v
}

// GrantID extracts the owning grant id, if the payload carries one.
func (p Payload) GrantID() string { return p.stringKey(payloadKeyGrantID) }

// UserCode extracts the device-flow user code, if present.
func (p Payload) UserCode() string { return p.stringKey(payloadKeyUserCode) }

// UID extracts the interaction correlation key, if present.
func (p Payload) UID() string { return p.stringKey(payloadKeyUID) }

// Clone returns a shallow copy so callers can annotate a payload (e.g. the
// consumed marker) without mutating the stored record.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PayloadRecord is the generic envelope persisted for every flow artifact.
// The payload stays opaque; the envelope carries what the store needs for
// lookups, expiry and consumption.
type PayloadRecord struct {
	ID       string
	Kind     Kind
	Payload  Payload
	GrantID  string
	UserCode string
	UID      string
	// ExpiresAt is nil for artifacts without a TTL. A record past its
	// ExpiresAt is absent to every read (soft expiry).
	ExpiresAt *time.Time
	// ConsumedAt is set once when a single-use artifact is redeemed. The
	// record stays readable so the engine can detect replay.
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPayloadRecord builds an envelope around an engine payload, lifting the
// secondary-index keys out of the payload body. A zero ttl means no expiry.
func NewPayloadRecord(kind Kind, id string, payload Payload, ttl time.Duration, now time.Time) *PayloadRecord {
	rec := &PayloadRecord{
		ID:        id,
		Kind:      kind,
		Payload:   payload,
		GrantID:   payload.GrantID(),
		UserCode:  payload.UserCode(),
		UID:       payload.UID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		rec.ExpiresAt = &expires
	}
	return rec
}

// IsExpired reports whether the record is past its ExpiresAt.
func (r *PayloadRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// IsConsumed reports whether the artifact has been redeemed.
func (r *PayloadRecord) IsConsumed() bool {
	return r.ConsumedAt != nil
}

// MarkConsumed stamps the first redemption time. Later calls keep the
// original stamp so replay detection reports the first use.
func (r *PayloadRecord) MarkConsumed(now time.Time) {
	if r.ConsumedAt == nil {
		consumed := now
		r.ConsumedAt = &consumed
	}
	r.UpdatedAt = now
}

// EnginePayload returns the payload in the form the flow engine expects on
// find: the stored body plus a consumed marker when the artifact has been
// redeemed.
func (r *PayloadRecord) EnginePayload() Payload {
	if !r.IsConsumed() {
		return r.Payload
	}
	out := r.Payload.Clone()
	if out == nil {
		// The engine may store a JSON-null payload; the marker still applies.
		out = Payload{}
	}
	out["consumed"] = true
	return out
}

// Clone deep-copies the envelope (payload shallow-copied) so in-memory
// stores never hand out aliased records.
func (r *PayloadRecord) Clone() *PayloadRecord {
	out := *r
	out.Payload = r.Payload.Clone()
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	if r.ConsumedAt != nil {
		t := *r.ConsumedAt
		out.ConsumedAt = &t
	}
	return &out
}
