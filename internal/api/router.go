// Package api provides the HTTP API for Trajet.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/api/handler"
	"github.com/trajet/trajet/internal/api/middleware"
	"github.com/trajet/trajet/internal/mapview"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/session"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Planner  *planner.Service
	Routing  *routing.Service
	Sessions session.Store
	Tokens   *session.TokenService
	Registry *resilience.Registry
	Style    mapview.Style

	// StorePinger reports session store reachability on the readiness probe (optional).
	StorePinger handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trajet-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type
	r.Use(middleware.RequireJSON)                // JSON request bodies only

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Store:     cfg.StorePinger,
		Registry:  cfg.Registry,
		Cache:     cfg.Routing,
	})
	sessionHandler := handler.NewSessionHandler(handler.SessionConfig{
		Store:   cfg.Sessions,
		Tokens:  cfg.Tokens,
		Planner: cfg.Planner,
		Style:   cfg.Style,
		Logger:  cfg.Logger,
	})
	lookupHandler := handler.NewLookupHandler(cfg.Routing)

	sessionAuth := middleware.SessionAuth(cfg.Tokens)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Session creation (public) - strict rate limiting
		r.With(middleware.RateLimitByIP(middleware.SessionCreateRateLimit)).
			Post("/sessions", sessionHandler.CreateSession)

		// Planning session (bearer token) - limits keyed by session
		r.Route("/session", func(r chi.Router) {
			r.Use(sessionAuth)

			// Keystrokes arrive at typing speed.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(middleware.KeystrokeRateLimit))
				r.Put("/start/input", sessionHandler.UpdateStartInput)
				r.Put("/destination/input", sessionHandler.UpdateDestinationInput)
			})

			// Provider-backed actions
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(middleware.ExpensiveRateLimit))
				r.Post("/start", sessionHandler.SelectStart)
				r.Post("/route", sessionHandler.ComputeRoute)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(middleware.StandardRateLimit))
				r.Get("/", sessionHandler.GetState)
				r.Delete("/", sessionHandler.EndSession)
				r.Post("/geolocation", sessionHandler.ReportGeolocation)
				r.Post("/destination", sessionHandler.SelectDestination)
				r.Put("/options", sessionHandler.UpdateOptions)

				r.Post("/incident-dialog", sessionHandler.OpenIncidentDialog)
				r.Delete("/incident-dialog", sessionHandler.CloseIncidentDialog)
				r.Put("/incident-dialog/category", sessionHandler.SelectIncidentCategory)
				r.Post("/incidents", sessionHandler.ReportIncident)

				r.Get("/map", sessionHandler.GetMap)
				r.Get("/map.geojson", sessionHandler.GetMapGeoJSON)
			})
		})

		// Stateless lookups (public) - rate limited by IP
		r.With(middleware.RateLimitByIP(middleware.KeystrokeRateLimit)).
			Get("/suggestions", lookupHandler.Suggestions)
		r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).
			Get("/geocode", lookupHandler.Geocode)
		r.With(middleware.RateLimitByIP(middleware.ExpensiveRateLimit)).
			Post("/routes:compute", lookupHandler.ComputeRoute)
	})

	return r
}
