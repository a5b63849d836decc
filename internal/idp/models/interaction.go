package models

import (
	dErrors "oidcbridge/pkg/domain-errors"
	pstrings "oidcbridge/pkg/platform/strings"
)

// Interaction result variants. Exactly one of Login, Consent or Error is
// set once an interaction leaves its pending state.
type (
	LoginResult struct {
		AccountID string
	}

	ConsentResult struct {
		GrantID string
		Scope   string
	}

	InteractionResult struct {
		Login            *LoginResult
		Consent          *ConsentResult
		Error            string
		ErrorDescription string
	}
)

// IsTerminal reports whether a result has been recorded at all.
func (r *InteractionResult) IsTerminal() bool {
	return r != nil && (r.Login != nil || r.Consent != nil || r.Error != "")
}

func (r *InteractionResult) toPayload() map[string]any {
	switch {
	case r == nil:
		return nil
	case r.Login != nil:
		return map[string]any{"login": map[string]any{"accountId": r.Login.AccountID}}
	case r.Consent != nil:
		return map[string]any{"consent": map[string]any{
			"grantId": r.Consent.GrantID,
			"scope":   r.Consent.Scope,
		}}
	default:
		return map[string]any{
			"error":             r.Error,
			"error_description": r.ErrorDescription,
		}
	}
}

func resultFromPayload(v any) *InteractionResult {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if login, ok := m["login"].(map[string]any); ok {
		if accountID, ok := login["accountId"].(string); ok {
			return &InteractionResult{Login: &LoginResult{AccountID: accountID}}
		}
	}
	if consent, ok := m["consent"].(map[string]any); ok {
		grantID, _ := consent["grantId"].(string)
		scope, _ := consent["scope"].(string)
		return &InteractionResult{Consent: &ConsentResult{GrantID: grantID, Scope: scope}}
	}
	if errCode, ok := m["error"].(string); ok {
		desc, _ := m["error_description"].(string)
		return &InteractionResult{Error: errCode, ErrorDescription: desc}
	}
	return nil
}

// Interaction is a typed view over an Interaction payload record. The raw
// payload is carried alongside the decoded fields so engine-owned keys this
// subsystem does not understand survive a round trip untouched.
type Interaction struct {
	UID              string
	Prompt           string
	Params           map[string]string
	SessionAccountID string
	GrantID          string
	ReturnTo         string
	Result           *InteractionResult

	raw Payload
}

// InteractionFromRecord decodes the engine's interaction shape: uid, a
// prompt with a name, the original authorization parameters, the bound
// session (if the user already authenticated), the linked grant and the
// resume URL.
func InteractionFromRecord(rec *PayloadRecord) (*Interaction, error) {
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "interaction record is required")
	}

	raw := rec.Payload.Clone()
	if raw == nil {
		raw = Payload{}
	}

	in := &Interaction{
		UID:      rec.UID,
		GrantID:  raw.stringKey(payloadKeyGrantID),
		ReturnTo: raw.stringKey("returnTo"),
		Result:   resultFromPayload(raw["result"]),
		raw:      raw,
	}
	if in.UID == "" {
		in.UID = raw.stringKey(payloadKeyUID)
	}

	switch prompt := raw["prompt"].(type) {
	case string:
		in.Prompt = prompt
	case map[string]any:
		in.Prompt, _ = prompt["name"].(string)
	}

	if params, ok := raw["params"].(map[string]any); ok {
		in.Params = make(map[string]string, len(params))
		for k, v := range params {
			if s, ok := v.(string); ok {
				in.Params[k] = s
			}
		}
	}

	if session, ok := raw["session"].(map[string]any); ok {
		in.SessionAccountID, _ = session["accountId"].(string)
	}

	return in, nil
}

// ClientID returns the relying party from the original authorization
// request parameters.
func (i *Interaction) ClientID() string {
	return i.Params["client_id"]
}

// RequestedScope returns the scope tokens from the original authorization
// request parameters.
func (i *Interaction) RequestedScope() []string {
	return pstrings.SplitScope(i.Params["scope"])
}

// SetLoginResult records a successful credential submission.
func (i *Interaction) SetLoginResult(accountID string) {
	i.Result = &InteractionResult{Login: &LoginResult{AccountID: accountID}}
}

// SetConsentResult records granted consent and links the grant to the
// interaction so a repeated submission extends the same grant.
func (i *Interaction) SetConsentResult(grantID, scope string) {
	i.Result = &InteractionResult{Consent: &ConsentResult{GrantID: grantID, Scope: scope}}
	i.GrantID = grantID
}

// SetErrorResult records an aborted or failed interaction.
func (i *Interaction) SetErrorResult(code, description string) {
	i.Result = &InteractionResult{Error: code, ErrorDescription: description}
}

// EnginePayload re-encodes the interaction for persistence. Only the keys
// this subsystem owns (result, grantId) are rewritten; everything else is
// the engine's verbatim payload.
func (i *Interaction) EnginePayload() Payload {
	out := i.raw.Clone()
	if out == nil {
		out = Payload{}
	}
	if i.Result != nil {
		out["result"] = i.Result.toPayload()
	}
	if i.GrantID != "" {
		out[payloadKeyGrantID] = i.GrantID
	}
	if i.UID != "" {
		out[payloadKeyUID] = i.UID
	}
	return out
}
