package models

import (
	"time"

	dErrors "oidcbridge/pkg/domain-errors"
	pstrings "oidcbridge/pkg/platform/strings"
)

// Grant accumulates the scopes one account has consented to share with one
// client. Scope only ever grows through the consent flow; revocation is a
// separate destroy operation.
type Grant struct {
	ID        string
	AccountID string
	ClientID  string
	Scope     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGrant starts an empty grant for an (account, client) pair.
func NewGrant(id, accountID, clientID string, now time.Time) (*Grant, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant id cannot be empty")
	}
	if accountID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant account id cannot be empty")
	}
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant client id cannot be empty")
	}
	return &Grant{
		ID:        id,
		AccountID: accountID,
		ClientID:  clientID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AddScope unions the given tokens into the grant's scope set. Existing
// order is preserved; duplicates never appear.
func (g *Grant) AddScope(tokens []string, now time.Time) {
	g.Scope = pstrings.Union(g.Scope, tokens)
	g.UpdatedAt = now
}

// ScopeString renders the accumulated scope in wire form.
func (g *Grant) ScopeString() string {
	return pstrings.JoinScope(g.Scope)
}

// EnginePayload serializes the grant into the opaque form stored through
// the adapter facade.
func (g *Grant) EnginePayload() Payload {
	return Payload{
		"accountId": g.AccountID,
		"clientId":  g.ClientID,
		"scope":     g.ScopeString(),
	}
}

// GrantFromRecord decodes a stored grant envelope back into its typed view.
func GrantFromRecord(rec *PayloadRecord) (*Grant, error) {
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant record is required")
	}
	accountID := rec.Payload.stringKey("accountId")
	clientID := rec.Payload.stringKey("clientId")
	if accountID == "" || clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant payload missing accountId or clientId")
	}
	return &Grant{
		ID:        rec.ID,
		AccountID: accountID,
		ClientID:  clientID,
		Scope:     pstrings.SplitScope(rec.Payload.stringKey("scope")),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
