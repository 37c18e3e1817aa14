package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monedero/internal/platform/metrics"
	"monedero/internal/platform/middleware"
)

// Registrar is anything that mounts routes on the shared router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter assembles the full route table with the shared middleware
// chain. Auth is applied per handler group, not globally: the registration
// workflow runs before credentials exist.
func NewRouter(logger *slog.Logger, httpMetrics *metrics.HTTP, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestContext)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(httpMetrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
