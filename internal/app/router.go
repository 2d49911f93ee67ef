package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jiorblanc/estoque/internal/ledger"
	"github.com/jiorblanc/estoque/internal/mapping"
	"github.com/jiorblanc/estoque/internal/recap"
	"github.com/jiorblanc/estoque/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	LedgerHandler  *ledger.Handler
	MappingHandler *mapping.Handler
	RecapHandler   *recap.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.LedgerHandler.MountRoutes(r)
		r.Route("/mappings", params.MappingHandler.MountRoutes)
		r.Route("/recap", func(r chi.Router) {
			r.Use(RecapRateLimiter())
			params.RecapHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
