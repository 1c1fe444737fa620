package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/trajet/trajet/internal/routing"

// Operation names used for metrics and spans.
const (
	OpGeocode    = "geocode"
	OpSuggest    = "suggest"
	OpDirections = "directions"
)

// MetricsRecorder records provider call metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(string, string, time.Duration, error) {}
func (nopMetrics) RecordCacheHit(string, string)                      {}
func (nopMetrics) RecordCacheMiss(string, string)                     {}

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the geocoding/routing backend.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider calls (optional).
	Metrics MetricsRecorder

	// CacheTTL is how long computed routes are reused (default: 5 minutes).
	// A negative value disables the route cache.
	CacheTTL time.Duration

	// CleanupInterval is how often expired entries are dropped (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service fronts a Provider with validation, the suggestion length gate,
// a route cache, metrics and tracing.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         MetricsRecorder
	tracer          trace.Tracer
	cacheTTL        time.Duration
	cleanupInterval time.Duration

	mu          sync.RWMutex
	cache       map[string]*cachedRoute
	lastCleanup time.Time
}

type cachedRoute struct {
	route     *Route
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         metrics,
		tracer:          otel.Tracer(tracerName),
		cacheTTL:        cacheTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedRoute),
	}
}

// Geocode resolves an address to its first candidate.
// An empty address never reaches the provider and yields ErrNoMatch.
func (s *Service) Geocode(ctx context.Context, text string) (*Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "EMPTY_ADDRESS",
			Message:  "address is empty",
			Err:      ErrNoMatch,
		}
	}

	ctx, span := s.tracer.Start(ctx, "routing.Geocode", trace.WithAttributes(
		attribute.String("provider.name", s.provider.Name()),
	))
	defer span.End()

	start := time.Now()
	place, err := s.provider.Geocode(ctx, text)
	s.metrics.RecordRequest(s.provider.Name(), OpGeocode, time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		s.logger.Error().Err(err).
			Str("provider", s.provider.Name()).
			Str("address", text).
			Msg("geocoding failed")
		return nil, err
	}

	s.logger.Debug().
		Str("address", text).
		Float64("lat", place.Position.Lat).
		Float64("lon", place.Position.Lon).
		Msg("address resolved")

	return place, nil
}

// Suggest returns address suggestions for a partial query.
// Queries shorter than MinSuggestLength characters return an empty list without a provider call.
func (s *Service) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	if utf8.RuneCountInString(text) < MinSuggestLength {
		return []Suggestion{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "routing.Suggest", trace.WithAttributes(
		attribute.String("provider.name", s.provider.Name()),
	))
	defer span.End()

	start := time.Now()
	suggestions, err := s.provider.Suggest(ctx, text)
	s.metrics.RecordRequest(s.provider.Name(), OpSuggest, time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		s.logger.Error().Err(err).
			Str("provider", s.provider.Name()).
			Str("query", text).
			Msg("autocomplete failed")
		return nil, err
	}

	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions, nil
}

// Directions computes a route between two points, reusing a cached route when fresh.
// Failures are never answered from cache.
func (s *Service) Directions(ctx context.Context, req DirectionsRequest) (*Route, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}

	key := cacheKey(req)
	if route, ok := s.cached(key); ok {
		s.metrics.RecordCacheHit(s.provider.Name(), OpDirections)
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		return route, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), OpDirections)

	ctx, span := s.tracer.Start(ctx, "routing.Directions", trace.WithAttributes(
		attribute.String("provider.name", s.provider.Name()),
		attribute.Bool("route.avoid_tolls", req.AvoidTolls),
	))
	defer span.End()

	s.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Bool("avoid_tolls", req.AvoidTolls).
		Str("provider", s.provider.Name()).
		Msg("fetching directions from provider")

	start := time.Now()
	route, err := s.provider.Directions(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), OpDirections, time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		s.logger.Error().Err(err).
			Float64("origin_lat", req.Origin.Lat).
			Float64("origin_lon", req.Origin.Lon).
			Float64("dest_lat", req.Destination.Lat).
			Float64("dest_lon", req.Destination.Lon).
			Msg("failed to fetch directions")
		return nil, err
	}

	s.store(key, route)
	return route, nil
}

func (s *Service) cached(key string) (*Route, bool) {
	if s.cacheTTL < 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[key]
	if !ok || !time.Now().Before(c.expiresAt) {
		return nil, false
	}
	return c.route, true
}

func (s *Service) store(key string, route *Route) {
	if s.cacheTTL < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = &cachedRoute{
		route:     route,
		expiresAt: time.Now().Add(s.cacheTTL),
	}
	s.cleanupIfNeeded()
}

// cacheKey identifies a route request. Coordinates are keyed at 1e-6 degrees
// so distinct starts never share a geometry.
// Format: {avoidTolls}:{originLat},{originLon}:{destLat},{destLon}.
func cacheKey(req DirectionsRequest) string {
	return fmt.Sprintf("%t:%.6f,%.6f:%.6f,%.6f",
		req.AvoidTolls,
		req.Origin.Lat, req.Origin.Lon,
		req.Destination.Lat, req.Destination.Lon,
	)
}

// cleanupIfNeeded removes expired entries. Callers hold s.mu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0
	for key, c := range s.cache {
		if now.After(c.expiresAt) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired route cache entries")
	}
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedRoute)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
