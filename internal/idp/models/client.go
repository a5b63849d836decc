package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Client is a registered relying party. Registrations are owned by the
// portal's admin side; this subsystem only reads them.
//
// Invariants:
//   - ClientID is immutable once issued
//   - RedirectURIs are matched by exact string equality by the flow engine
type Client struct {
	ClientID string `json:"client_id"`
	// ClientSecretHash is empty for public clients. Never serialized.
	ClientSecretHash        string   `json:"-"`
	Name                    string   `json:"name"`
	HomepageURI             string   `json:"homepage_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// IsConfidential reports whether the client holds a secret. Public clients
// (SPAs, mobile apps) cannot store one securely.
func (c *Client) IsConfidential() bool {
	return c.ClientSecretHash != ""
}

// VerifySecret checks a presented client secret against the stored bcrypt
// hash. Always false for public clients.
func (c *Client) VerifySecret(secret string) bool {
	if !c.IsConfidential() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), []byte(secret)) == nil
}

// HashClientSecret derives the stored form of a client secret.
func HashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// EnginePayload shapes the registration the way the flow engine expects:
// string sets for URI/grant/response lists and optional fields omitted
// rather than null.
func (c *Client) EnginePayload() Payload {
	out := Payload{
		"client_id": c.ClientID,
	}
	if c.Name != "" {
		out["client_name"] = c.Name
	}
	if c.HomepageURI != "" {
		out["client_uri"] = c.HomepageURI
	}
	if c.LogoURI != "" {
		out["logo_uri"] = c.LogoURI
	}
	if len(c.RedirectURIs) > 0 {
		out["redirect_uris"] = append([]string(nil), c.RedirectURIs...)
	}
	if len(c.GrantTypes) > 0 {
		out["grant_types"] = append([]string(nil), c.GrantTypes...)
	}
	if len(c.ResponseTypes) > 0 {
		out["response_types"] = append([]string(nil), c.ResponseTypes...)
	}
	if c.Scope != "" {
		out["scope"] = c.Scope
	}
	if c.TokenEndpointAuthMethod != "" {
		out["token_endpoint_auth_method"] = c.TokenEndpointAuthMethod
	}
	return out
}
