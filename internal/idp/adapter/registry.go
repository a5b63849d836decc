package adapter

import (
	"log/slog"
	"sync"
	"time"

	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/models"
	"oidcbridge/internal/idp/store/artifact"
	"oidcbridge/internal/idp/store/client"
	dErrors "oidcbridge/pkg/domain-errors"
	"oidcbridge/pkg/platform/audit"
)

// Registry hands out one adapter per artifact kind. It is constructed once
// at process start and passed down explicitly; get-or-create is safe for
// concurrent use, since the engine asks for adapters lazily.
type Registry struct {
	artifacts artifact.Store
	clients   client.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Publisher
	now       func() time.Time

	mu       sync.Mutex
	adapters map[models.Kind]Adapter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger shared by all adapters.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics attaches instrumentation shared by all adapters.
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithClock overrides the adapters' time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithAuditPublisher sets the sink for revocation audit events.
func WithAuditPublisher(publisher audit.Publisher) RegistryOption {
	return func(r *Registry) {
		r.audit = publisher
	}
}

// NewRegistry builds the adapter registry over the two backing stores.
func NewRegistry(artifacts artifact.Store, clients client.Registry, opts ...RegistryOption) (*Registry, error) {
	if artifacts == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "artifact store is required")
	}
	if clients == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client registry is required")
	}
	r := &Registry{
		artifacts: artifacts,
		clients:   clients,
		logger:    slog.Default(),
		audit:     audit.NopPublisher{},
		now:       time.Now,
		adapters:  make(map[models.Kind]Adapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Adapter returns the adapter for the named artifact kind, creating it on
// first use. Unknown kinds are rejected so a misconfigured engine fails
// loudly at startup instead of writing under a stray name.
func (r *Registry) Adapter(name string) (Adapter, error) {
	kind := models.Kind(name)
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown artifact kind: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[kind]; ok {
		return a, nil
	}

	var a Adapter
	if kind == models.KindClient {
		a = &clientAdapter{registry: r.clients, logger: r.logger}
	} else {
		a = &artifactAdapter{
			kind:    kind,
			store:   r.artifacts,
			logger:  r.logger,
			metrics: r.metrics,
			audit:   r.audit,
			now:     r.now,
		}
	}
	r.adapters[kind] = a
	return a, nil
}
