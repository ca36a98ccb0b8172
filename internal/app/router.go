package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/console"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/observability"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/jobs"
)

// RouterParams groups dependencies for building an HTTP router. Nil handlers
// are not mounted, so the console and catalogd share this constructor.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	ConsoleHandler *console.Handler
	CatalogHandler *hscode.Handler
	JobHandler     *jobs.Handler
	// Ready reports dependency health for /readyz; nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the shared defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.ConsoleHandler != nil {
		r.Route("/api", params.ConsoleHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		token := ""
		if params.Config != nil {
			token = params.Config.CatalogAPIToken
		}
		r.Route("/v1/hs-codes", func(r chi.Router) {
			r.Use(RequireBearer(token))
			params.CatalogHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
