// Package main provides the entrypoint for the Trajet API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/api"
	"github.com/trajet/trajet/internal/api/handler"
	"github.com/trajet/trajet/internal/api/middleware"
	"github.com/trajet/trajet/internal/config"
	"github.com/trajet/trajet/internal/mapview"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/routing/providers"
	"github.com/trajet/trajet/internal/session"
	"github.com/trajet/trajet/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	const serviceName = "trajet-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.IsProduction() {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("routing_provider", cfg.RoutingProvider).
		Str("session_store", cfg.SessionStore).
		Msg("starting Trajet API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	sampleRatio := 1.0
	if cfg.IsProduction() {
		sampleRatio = 0.25
	}
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    sampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Routing provider behind the route cache
	registry := resilience.NewRegistry()
	provider, err := providers.New(cfg, registry, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize routing provider")
		os.Exit(1)
	}
	routingService := routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: cfg.RouteCacheTTL,
	})
	log.Info().Str("provider", provider.Name()).Msg("routing service initialized")

	// Session store
	store, pinger, closeStore, sweeper, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize session store")
		os.Exit(1)
	}
	defer closeStore()
	if sweeper != nil {
		if err := sweeper.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start session sweeper")
			os.Exit(1)
		}
		defer sweeper.Stop()
	}

	signingKey := cfg.SessionSigningKey
	if signingKey == "" {
		if cfg.IsProduction() {
			log.Error().Msg("SESSION_SIGNING_KEY is required in production")
			os.Exit(1)
		}
		signingKey = devSigningKey
		log.Warn().Msg("using default session signing key - not secure for production")
	}
	tokens := session.NewTokenService(session.TokenConfig{
		SigningKey: signingKey,
		Issuer:     "https://api.trajet.fr",
		Audience:   "trajet-api",
		TTL:        cfg.SessionTTL,
	})

	plannerService := planner.NewService(planner.ServiceConfig{
		Store:     store,
		Geocoder:  routingService,
		Suggester: routingService,
		Router:    routingService,
		Logger:    log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		Planner:     plannerService,
		Routing:     routingService,
		Sessions:    store,
		Tokens:      tokens,
		Registry:    registry,
		Style:       mapview.DefaultStyle(),
		StorePinger: pinger,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout*2 + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// newSessionStore builds the configured store. The in-memory store comes with
// a sweeper for expired sessions; Redis expires keys itself and is pinged for readiness.
func newSessionStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (
	store session.Store, pinger handler.Pinger, closeFn func(), sweeper *session.Sweeper, err error,
) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		rdb, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis session store connected")

		redisStore := session.NewRedisStore(session.RedisConfig{Client: rdb, TTL: cfg.SessionTTL})
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		}
		return redisStore, redisStore, closeFn, nil, nil

	default:
		memStore := session.NewMemoryStore(cfg.SessionTTL)
		sweeper := session.NewSweeper(memStore, cfg.SessionSweepSchedule, log)
		return memStore, nil, func() {}, sweeper, nil
	}
}
