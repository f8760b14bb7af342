// Package http wires the REST API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/prometheus"
	"github.com/storepilot/merchant-advisor/internal/interfaces/http/handlers"
	"github.com/storepilot/merchant-advisor/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for the
// complete route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	TurnHandler     *handlers.TurnHandler
	MerchantHandler *handlers.MerchantHandler
	SearchHandler   *handlers.SearchHandler
	HealthHandler   *handlers.HealthHandler

	Logger           logging.Logger
	LoggingConfig    middleware.LoggingConfig
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the route tree: public probes, the metrics endpoint
// and the versioned API group.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.LoggingConfig))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.TurnHandler != nil {
			api.Post("/turns", cfg.TurnHandler.Create)
		}
		registerMerchantRoutes(api, cfg.MerchantHandler)
		if cfg.SearchHandler != nil {
			api.Get("/search/web", cfg.SearchHandler.Web)
		}
	})

	return r
}

func registerMerchantRoutes(r chi.Router, h *handlers.MerchantHandler) {
	if h == nil {
		return
	}
	r.Route("/merchants", func(mr chi.Router) {
		mr.Get("/resolve", h.Resolve)
		mr.Get("/search", h.Search)
		mr.Get("/{merchantID}", h.Get)
	})
}
