// Package audit captures security-relevant actions from the authorization
// flow. Events are emitted from domain logic and fanned out by a Publisher;
// transports stay out of the domain packages.
package audit

import (
	"context"
	"time"
)

// Event records one security-relevant action in the interaction flow.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	// UID correlates the event with one interaction session.
	UID       string `json:"uid,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	GrantID   string `json:"grant_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	// Device is a human-readable description of the submitting browser,
	// derived from the User-Agent header at the transport layer.
	Device    string `json:"device,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Action names the auditable actions of this subsystem.
type Action string

const (
	ActionLoginSubmitted     Action = "login_submitted"
	ActionConsentGranted     Action = "consent_granted"
	ActionInteractionAborted Action = "interaction_aborted"
	ActionGrantRevoked       Action = "grant_revoked"
)

// Publisher delivers audit events to a sink. Publish must not block the
// request path on sink latency beyond the context deadline; losing an audit
// event is preferable to failing a login.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}

// NopPublisher drops all events. Used when auditing is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close(context.Context) error          { return nil }
