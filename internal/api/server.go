// Package api provides the REST API server for place lookups and sync jobs.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rovits/poi-sync-service/internal/api/jobs"
	"github.com/rovits/poi-sync-service/internal/api/poi"
	"github.com/rovits/poi-sync-service/internal/api/system"
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	pingers        []system.Pinger
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithReadinessChecks adds backends that must be reachable for /readiness
// to succeed
func WithReadinessChecks(p ...system.Pinger) ServerOption {
	return func(cfg *serverConfig) {
		cfg.pingers = append(cfg.pingers, p...)
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates and configures the HTTP router
func NewServer(
	resolver poi.Resolver, submitter jobs.Submitter, statuses jobs.StatusReader, opts ...ServerOption,
) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", system.HealthRouter(cfg.pingers...))
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	r.Mount("/api/places", poi.Router(resolver))
	r.Mount("/api/sync", jobs.Router(submitter, statuses))

	return r
}
