// Package api provides the HTTP API of AirSense.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airsense/airsense/internal/api/handler"
	"github.com/airsense/airsense/internal/api/middleware"
	"github.com/airsense/airsense/internal/api/response"
	"github.com/airsense/airsense/internal/auth"
	"github.com/airsense/airsense/internal/pipeline"
	"github.com/airsense/airsense/internal/publish"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics is optional.
	Metrics *middleware.Metrics

	// Tokens validates bearer tokens on the uplink and status endpoints.
	Tokens middleware.TokenValidator

	Pipeline *pipeline.Pipeline

	// Publisher is optional. When set, prepared points are published.
	Publisher publish.Publisher

	// Sinks are reported by the readiness and status endpoints.
	Sinks []handler.SinkHealth

	// RequireTLS rejects plain HTTP requests forwarded by the load balancer.
	RequireTLS bool
}

// NewRouter creates the chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airsense-api"
	}

	// Order matters: the request ID must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.MethodNotAllowed(w, req, req.Method+" is not supported on this endpoint")
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Pipeline, cfg.Sinks...)
	aqiHandler := handler.NewAQIHandler()
	uplinkHandler := handler.NewUplinkHandler(cfg.Pipeline, cfg.Publisher)

	authenticated := middleware.Auth(cfg.Tokens, "")
	ingest := middleware.Auth(cfg.Tokens, auth.ScopeUplinksWrite)
	publicRateLimit := middleware.RateLimitByIP(middleware.PublicRateLimit)
	ingestRateLimit := middleware.RateLimitByClient(middleware.IngestRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authenticated).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/aqi", func(r chi.Router) {
			r.Use(publicRateLimit)
			r.Get("/", aqiHandler.GetAQI)
			r.With(middleware.RequireJSON).Post("/", aqiHandler.PostAQI)
		})

		r.Group(func(r chi.Router) {
			r.Use(ingest)
			r.Use(ingestRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/uplinks:prepare", uplinkHandler.Prepare)
			r.Post("/uplinks:batch", uplinkHandler.Batch)
		})
	})

	return r
}
