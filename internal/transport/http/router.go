// Package httptransport assembles the HTTP surface: interaction
// submissions, the admin client catalog read, health and metrics.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oidcbridge/internal/idp/handler"
)

// NewRouter wires all endpoints. Business logic stays in the services the
// handler delegates to.
func NewRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Register(r)
	return r
}
