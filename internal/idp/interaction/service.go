// Package interaction drives a single end-user's login and consent
// decisions for one authorization attempt. It reads and mutates
// Interaction records, accumulates consent into Grants, and hands back the
// engine-computed resume URL after every step.
package interaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/artifact"
	dErrors "oidcbridge/pkg/domain-errors"
	"oidcbridge/pkg/platform/audit"
	"oidcbridge/pkg/platform/sentinel"
	"oidcbridge/pkg/requestcontext"
)

// TxRunner executes fn atomically where the backing store supports
// transactions. The nop runner is used for memory/redis stores, where the
// grant and interaction writes are independent and last-write-wins.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type nopTxRunner struct{}

func (nopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service is the interaction orchestrator. Concurrent submissions against
// the same uid are a caller-level race (one human, one browser session);
// the last write wins at the storage layer. A result that is already
// terminal is overwritten by a later submission, which covers the
// double-click case.
type Service struct {
	artifacts  artifact.Store
	ttl        time.Duration
	txRunner   TxRunner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      audit.Publisher
	tracer     trace.Tracer
	now        func() time.Time
	newGrantID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// WithTxRunner wraps the consent grant+interaction writes in one
// transaction.
func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) { s.txRunner = runner }
}

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGrantIDFunc overrides grant id generation.
func WithGrantIDFunc(fn func() string) Option {
	return func(s *Service) { s.newGrantID = fn }
}

// New constructs the orchestrator. ttl bounds how long a recorded result
// stays resumable before the engine must restart the authorization.
func New(artifacts artifact.Store, ttl time.Duration, opts ...Option) (*Service, error) {
	if artifacts == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "artifact store is required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "interaction ttl must be positive")
	}

	s := &Service{
		artifacts:  artifacts,
		ttl:        ttl,
		txRunner:   nopTxRunner{},
		logger:     slog.Default(),
		audit:      audit.NopPublisher{},
		tracer:     otel.Tracer("oidcbridge/interaction"),
		now:        time.Now,
		newGrantID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// load resolves the interaction for a uid. Missing and soft-expired both
// surface as not-found; the human-facing layer renders an expired screen.
func (s *Service) load(ctx context.Context, uid string) (*models.Interaction, *models.PayloadRecord, error) {
	rec, err := s.artifacts.GetByUID(ctx, uid)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeNotFound, "interaction not found")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load interaction")
	}

	in, err := models.InteractionFromRecord(rec)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode interaction")
	}
	return in, rec, nil
}

func (s *Service) persist(ctx context.Context, rec *models.PayloadRecord, in *models.Interaction) error {
	updated := models.NewPayloadRecord(models.KindInteraction, rec.ID, in.EnginePayload(), 0, s.now())
	return s.artifacts.Put(ctx, updated, s.ttl)
}

// SubmitLogin records a successful credential check for the interaction and
// returns the URL the browser must be redirected to so the engine can
// resume the authorization.
func (s *Service) SubmitLogin(ctx context.Context, uid, accountID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "interaction.submit_login")
	defer span.End()

	if accountID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}

	in, rec, err := s.load(ctx, uid)
	if err != nil {
		return "", err
	}

	in.SetLoginResult(accountID)
	if err := s.persist(ctx, rec, in); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist login result")
	}

	s.metrics.IncInteractionResult("login")
	s.publish(ctx, audit.Event{
		Action:    audit.ActionLoginSubmitted,
		UID:       uid,
		AccountID: accountID,
		ClientID:  in.ClientID(),
	})
	s.logger.InfoContext(ctx, "login submitted",
		"uid", uid,
		"client_id", in.ClientID(),
	)
	return in.ReturnTo, nil
}

// SubmitConsent materializes or extends the grant for the interaction's
// (account, client) pair, unions the requested scope into it, and records
// the consent result. Scope only ever accumulates; re-submitting consent
// with overlapping scope is idempotent in effect.
//
// Any failure while loading or saving the grant leaves the interaction
// result unset so the end user can retry.
func (s *Service) SubmitConsent(ctx context.Context, uid string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "interaction.submit_consent")
	defer span.End()

	in, rec, err := s.load(ctx, uid)
	if err != nil {
		return "", err
	}

	if in.SessionAccountID == "" {
		return "", dErrors.New(dErrors.CodeConsentFailed, "interaction has no authenticated session")
	}
	clientID := in.ClientID()
	if clientID == "" {
		return "", dErrors.New(dErrors.CodeConsentFailed, "interaction params carry no client_id")
	}

	grant, err := s.resolveGrant(ctx, in)
	if err != nil {
		return "", err
	}
	grant.AddScope(in.RequestedScope(), s.now())

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		grantRec := models.NewPayloadRecord(models.KindGrant, grant.ID, grant.EnginePayload(), 0, s.now())
		if err := s.artifacts.Put(ctx, grantRec, 0); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConsentFailed, "persist grant")
		}

		in.SetConsentResult(grant.ID, grant.ScopeString())
		if err := s.persist(ctx, rec, in); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConsentFailed, "persist consent result")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConsentFailed) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeConsentFailed, "consent transaction")
	}

	s.metrics.IncInteractionResult("consent")
	s.publish(ctx, audit.Event{
		Action:    audit.ActionConsentGranted,
		UID:       uid,
		AccountID: grant.AccountID,
		ClientID:  grant.ClientID,
		GrantID:   grant.ID,
		Scope:     grant.ScopeString(),
	})
	s.logger.InfoContext(ctx, "consent granted",
		"uid", uid,
		"grant_id", grant.ID,
		"scope", grant.ScopeString(),
	)
	return in.ReturnTo, nil
}

// resolveGrant loads the grant already linked to the interaction, or starts
// a fresh one for the (account, client) pair.
func (s *Service) resolveGrant(ctx context.Context, in *models.Interaction) (*models.Grant, error) {
	if in.GrantID == "" {
		grant, err := models.NewGrant(s.newGrantID(), in.SessionAccountID, in.ClientID(), s.now())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConsentFailed, "create grant")
		}
		return grant, nil
	}

	rec, err := s.artifacts.GetByID(ctx, in.GrantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConsentFailed, "load linked grant")
	}
	grant, err := models.GrantFromRecord(rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConsentFailed, "decode linked grant")
	}
	return grant, nil
}

// Abort records the end user's refusal and returns the resume URL; the
// engine will relay access_denied to the relying party.
func (s *Service) Abort(ctx context.Context, uid string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "interaction.abort")
	defer span.End()

	in, rec, err := s.load(ctx, uid)
	if err != nil {
		return "", err
	}

	in.SetErrorResult("access_denied", "End-User aborted interaction")
	if err := s.persist(ctx, rec, in); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist abort result")
	}

	s.metrics.IncInteractionResult("abort")
	s.publish(ctx, audit.Event{
		Action:   audit.ActionInteractionAborted,
		UID:      uid,
		ClientID: in.ClientID(),
		Reason:   "End-User aborted interaction",
	})
	s.logger.InfoContext(ctx, "interaction aborted",
		"uid", uid,
		"client_id", in.ClientID(),
	)
	return in.ReturnTo, nil
}

func (s *Service) publish(ctx context.Context, event audit.Event) {
	event.Timestamp = s.now()
	event.Device = requestcontext.Device(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Publish(ctx, event); err != nil {
		// Audit loss must not fail the user-facing flow.
		s.logger.WarnContext(ctx, "audit publish failed",
			"action", string(event.Action),
			"uid", event.UID,
			"error", err,
		)
	}
}
