// Package routing provides address resolution, address suggestions and driving
// directions behind provider-agnostic ports.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the provider is down, unreachable, rejected the API key,
	// or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoMatch indicates geocoding returned zero candidates for the address.
	ErrNoMatch = errors.New("no match found for address")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrMalformedResponse indicates the provider answered with a body we could not interpret.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// MinSuggestLength is the minimum query length, in characters, before suggestions are fetched.
const MinSuggestLength = 3

// MaxSuggestions caps the number of suggestions requested from a provider.
const MaxSuggestions = 5

// DefaultCountry restricts geocoding and suggestions to France.
const DefaultCountry = "FR"

// Geocoder resolves a free-text address into a place.
type Geocoder interface {
	// Geocode returns the first candidate for the address.
	// Returns ErrNoMatch when the provider has no candidate.
	Geocode(ctx context.Context, text string) (*Place, error)
}

// Suggester returns incremental address suggestions.
type Suggester interface {
	// Suggest returns at most MaxSuggestions suggestions for a partial address.
	Suggest(ctx context.Context, text string) ([]Suggestion, error)
}

// Router computes driving directions.
type Router interface {
	// Directions computes a route between two resolved points.
	Directions(ctx context.Context, req DirectionsRequest) (*Route, error)
}

// Provider bundles the three ports a routing backend must implement.
type Provider interface {
	Geocoder
	Suggester
	Router
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Coordinate represents a geographic point. Fields are always (lat, lon);
// provider payloads use [lon, lat] and go through LonLat / FromLonLat.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LonLat returns the coordinate in GeoJSON [lon, lat] order.
func (c Coordinate) LonLat() []float64 {
	return []float64{c.Lon, c.Lat}
}

// FromLonLat builds a coordinate from a GeoJSON [lon, lat] position.
// Extra elements (altitude) are not accepted.
func FromLonLat(pos []float64) (Coordinate, error) {
	if len(pos) != 2 {
		return Coordinate{}, fmt.Errorf("%w: position has %d elements, want 2", ErrMalformedResponse, len(pos))
	}
	return Coordinate{Lat: pos[1], Lon: pos[0]}, nil
}

// Validate checks that the coordinate is within valid ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}

// Place is a geocoded address.
type Place struct {
	Label    string
	Position Coordinate
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	// IsLocation marks the synthetic "current location" entry.
	IsLocation bool `json:"isLocation,omitempty"`
}

// SuggestionKey returns the provider identifier, or an index-qualified label
// when the provider did not supply one.
func SuggestionKey(id, label string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", label, index)
}

// DirectionsRequest is the request for computing a driving route.
type DirectionsRequest struct {
	Origin      Coordinate
	Destination Coordinate
	AvoidTolls  bool
}

// RouteSummary is the aggregate distance and duration of a route.
type RouteSummary struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// DistanceText returns the distance in kilometres with two decimals.
func (s RouteSummary) DistanceText() string {
	return FormatDistance(s.DistanceMeters)
}

// DurationText returns the duration as hours and minutes.
func (s RouteSummary) DurationText() string {
	return FormatDuration(s.DurationSeconds)
}

// Route is a computed driving route.
type Route struct {
	Geometry  []Coordinate // Ordered path, (lat, lon)
	Summary   RouteSummary
	Provider  string
	FetchedAt time.Time
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
