package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the identity-provider
// integration.
type Metrics struct {
	InteractionResults *prometheus.CounterVec
	ArtifactOpDuration *prometheus.HistogramVec
	GrantsRevoked      prometheus.Counter
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		InteractionResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcbridge_interaction_results_total",
			Help: "Interaction submissions by outcome (login, consent, abort, error)",
		}, []string{"outcome"}),
		ArtifactOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oidcbridge_artifact_op_duration_ms",
			Help:    "Latency of artifact store operations in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}, []string{"op"}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oidcbridge_grants_revoked_total",
			Help: "Token families removed via revoke-by-grant",
		}),
	}
}

// ObserveArtifactOp records one store operation's latency.
func (m *Metrics) ObserveArtifactOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.ArtifactOpDuration.WithLabelValues(op).
		Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// IncInteractionResult counts one interaction outcome.
func (m *Metrics) IncInteractionResult(outcome string) {
	if m == nil {
		return
	}
	m.InteractionResults.WithLabelValues(outcome).Inc()
}

// IncGrantsRevoked counts one cascade revocation.
func (m *Metrics) IncGrantsRevoked() {
	if m == nil {
		return
	}
	m.GrantsRevoked.Inc()
}
