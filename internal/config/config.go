// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Routing providers.
const (
	ProviderOpenRouteService = "openrouteservice"
	ProviderGoogleMaps       = "googlemaps"
)

// Session stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds the API configuration.
type Config struct {
	Port string
	Env  string

	RoutingProvider    string
	ORSAPIKey          string
	ORSBaseURL         string
	GoogleMapsAPIKey   string
	GeocodeCountry     string
	ProviderTimeout    time.Duration
	ProviderMaxRetries uint64
	// RouteCacheTTL is negative when ROUTE_CACHE_TTL is zero or negative,
	// which disables the route cache.
	RouteCacheTTL      time.Duration

	SessionStore         string
	SessionTTL           time.Duration
	SessionSigningKey    string
	SessionSweepSchedule string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTelEnabled  bool
	OTLPEndpoint string
	RequireTLS   bool
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding values already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:                 getEnvOrDefault("APP_PORT", "8080"),
		Env:                  getEnvOrDefault("APP_ENV", "development"),
		RoutingProvider:      strings.ToLower(getEnvOrDefault("ROUTING_PROVIDER", ProviderOpenRouteService)),
		ORSAPIKey:            os.Getenv("ORS_API_KEY"),
		ORSBaseURL:           os.Getenv("ORS_BASE_URL"),
		GoogleMapsAPIKey:     os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeCountry:       strings.ToUpper(getEnvOrDefault("GEOCODE_COUNTRY", "FR")),
		SessionStore:         strings.ToLower(getEnvOrDefault("SESSION_STORE", StoreMemory)),
		SessionSigningKey:    os.Getenv("SESSION_SIGNING_KEY"),
		SessionSweepSchedule: getEnvOrDefault("SESSION_SWEEP_SCHEDULE", "@every 1m"),
		RedisAddr:            getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		OTLPEndpoint:         getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:          os.Getenv("OTEL_ENABLED") == "true",
		RequireTLS:           os.Getenv("REQUIRE_TLS") == "true",
	}
	if cfg.ORSAPIKey == "" {
		cfg.ORSAPIKey = os.Getenv("VITE_ORS_API_KEY")
	}

	var err error
	if cfg.ProviderTimeout, err = durationEnv("PROVIDER_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.RouteCacheTTL, err = durationEnv("ROUTE_CACHE_TTL", "5m"); err != nil {
		return Config{}, err
	}
	if cfg.RouteCacheTTL <= 0 {
		cfg.RouteCacheTTL = -1
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", "24h"); err != nil {
		return Config{}, err
	}

	retries, err := strconv.ParseUint(getEnvOrDefault("PROVIDER_MAX_RETRIES", "0"), 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("PROVIDER_MAX_RETRIES: %w", err)
	}
	cfg.ProviderMaxRetries = retries

	if cfg.RedisDB, err = strconv.Atoi(getEnvOrDefault("REDIS_DB", "0")); err != nil {
		return Config{}, fmt.Errorf("REDIS_DB: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values. Missing API keys are allowed; provider
// calls then fail at request time.
func (c Config) Validate() error {
	switch c.RoutingProvider {
	case ProviderOpenRouteService, ProviderGoogleMaps:
	default:
		return fmt.Errorf("ROUTING_PROVIDER: unknown provider %q", c.RoutingProvider)
	}
	switch c.SessionStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("SESSION_STORE: unknown store %q", c.SessionStore)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func durationEnv(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
