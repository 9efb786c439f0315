// Package httpapi composes the feature routers into the public surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes a backing dependency. A nil check means the process has
// nothing external to ask and /healthz answers ok unconditionally.
type HealthCheck func(ctx context.Context) error

// NewRouter mounts all feature handlers plus the operational endpoints.
// Feature handlers carry their own middleware chains; /healthz and /metrics
// stay outside of them so probes never need credentials.
func NewRouter(health HealthCheck, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if health != nil {
			if err := health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
