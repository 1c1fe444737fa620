// Package googlemaps adapts the Google Maps Platform geocoding, place
// autocomplete and directions APIs to the routing ports.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "googlemaps"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	language = "fr"
)

var errMissingKey = &routing.Error{
	Provider: ProviderName,
	Code:     "FORBIDDEN",
	Message:  "GOOGLE_MAPS_API_KEY is not configured",
	Err:      routing.ErrProviderUnavailable,
}

// ClientConfig holds configuration for the Google Maps client.
type ClientConfig struct {
	// APIKey is the Google Maps Platform key. Without it every call fails
	// with ErrProviderUnavailable.
	APIKey string

	// BaseURL overrides the API host (optional, used in tests).
	BaseURL string

	// Country restricts geocoding and autocomplete (optional, defaults to FR).
	Country string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, requests go through a resilient transport.
	HTTPClient *http.Client

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries is passed to the default resilient transport (optional, defaults to 0).
	MaxRetries uint64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client implements routing.Provider on top of googlemaps.github.io/maps.
type Client struct {
	maps    *maps.Client
	country string
	logger  zerolog.Logger
}

// NewClient creates a new Google Maps client.
func NewClient(cfg ClientConfig) (*Client, error) {
	country := cfg.Country
	if country == "" {
		country = routing.DefaultCountry
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = cfg.MaxRetries
		clientCfg.Registry = cfg.Registry
		httpClient = &http.Client{Transport: resilience.NewClient(clientCfg).Transport()}
	}

	if cfg.APIKey == "" {
		return &Client{country: country, logger: cfg.Logger}, nil
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google maps client: %w", err)
	}

	return &Client{
		maps:    mc,
		country: country,
		logger:  cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode resolves an address and returns the first candidate.
func (c *Client) Geocode(ctx context.Context, text string) (*routing.Place, error) {
	if c.maps == nil {
		return nil, errMissingKey
	}
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{
		Address:    text,
		Components: map[maps.Component]string{maps.ComponentCountry: c.country},
		Region:     strings.ToLower(c.country),
		Language:   language,
	})
	if err != nil {
		return nil, c.mapError(err, routing.ErrNoMatch)
	}
	if len(results) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_MATCH",
			Message:  fmt.Sprintf("no candidate for %q", text),
			Err:      routing.ErrNoMatch,
		}
	}

	first := results[0]
	c.logger.Debug().
		Str("address", text).
		Str("label", first.FormattedAddress).
		Int("candidates", len(results)).
		Msg("geocoded address with Google Maps")

	return &routing.Place{
		Label: first.FormattedAddress,
		Position: routing.Coordinate{
			Lat: first.Geometry.Location.Lat,
			Lon: first.Geometry.Location.Lng,
		},
	}, nil
}

// Suggest returns place autocomplete predictions.
func (c *Client) Suggest(ctx context.Context, text string) ([]routing.Suggestion, error) {
	if c.maps == nil {
		return nil, errMissingKey
	}
	resp, err := c.maps.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{
		Input:      text,
		Language:   language,
		Components: map[maps.Component][]string{maps.ComponentCountry: {strings.ToLower(c.country)}},
	})
	if err != nil {
		if isStatus(err, "ZERO_RESULTS") {
			return []routing.Suggestion{}, nil
		}
		return nil, c.mapError(err, routing.ErrNoMatch)
	}

	suggestions := make([]routing.Suggestion, 0, len(resp.Predictions))
	for i, p := range resp.Predictions {
		if i == routing.MaxSuggestions {
			break
		}
		suggestions = append(suggestions, routing.Suggestion{
			Label: p.Description,
			Key:   routing.SuggestionKey(p.PlaceID, p.Description, i),
		})
	}
	return suggestions, nil
}

// Directions computes a driving route. The overview polyline becomes the route geometry.
func (c *Client) Directions(ctx context.Context, req routing.DirectionsRequest) (*routing.Route, error) {
	if c.maps == nil {
		return nil, errMissingKey
	}
	dr := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", req.Origin.Lat, req.Origin.Lon),
		Destination: fmt.Sprintf("%f,%f", req.Destination.Lat, req.Destination.Lon),
		Mode:        maps.TravelModeDriving,
		Language:    language,
	}
	if req.AvoidTolls {
		dr.Avoid = []maps.Avoid{maps.AvoidTolls}
	}

	routes, _, err := c.maps.Directions(ctx, dr)
	if err != nil {
		return nil, c.mapError(err, routing.ErrNoRouteFound)
	}
	if len(routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "directions response contains no route",
			Err:      routing.ErrNoRouteFound,
		}
	}

	first := routes[0]
	points, err := polyline.Decode(first.OverviewPolyline.Points)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  err.Error(),
			Err:      routing.ErrMalformedResponse,
		}
	}

	if len(points) < 2 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  fmt.Sprintf("route geometry has %d points", len(points)),
			Err:      routing.ErrMalformedResponse,
		}
	}

	geometry := make([]routing.Coordinate, len(points))
	for i, p := range points {
		geometry[i] = routing.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}

	var summary routing.RouteSummary
	for _, leg := range first.Legs {
		summary.DistanceMeters += float64(leg.Distance.Meters)
		summary.DurationSeconds += leg.Duration.Seconds()
	}

	c.logger.Debug().
		Int("points", len(geometry)).
		Int("legs", len(first.Legs)).
		Float64("distance_m", summary.DistanceMeters).
		Float64("duration_s", summary.DurationSeconds).
		Bool("avoid_tolls", req.AvoidTolls).
		Msg("received directions from Google Maps")

	return &routing.Route{
		Geometry:  geometry,
		Summary:   summary,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// mapError converts SDK status errors to routing errors. notFound is the
// sentinel used for ZERO_RESULTS and NOT_FOUND.
func (c *Client) mapError(err error, notFound error) error {
	c.logger.Debug().Err(err).Msg("Google Maps error response")

	switch {
	case isStatus(err, "ZERO_RESULTS"), isStatus(err, "NOT_FOUND"):
		return &routing.Error{Provider: ProviderName, Code: "NO_RESULTS", Message: err.Error(), Err: notFound}
	case isStatus(err, "OVER_QUERY_LIMIT"), isStatus(err, "OVER_DAILY_LIMIT"):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case isStatus(err, "REQUEST_DENIED"):
		return &routing.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	case isStatus(err, "INVALID_REQUEST") && errors.Is(notFound, routing.ErrNoRouteFound):
		return &routing.Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: err.Error(), Err: routing.ErrInvalidCoordinates}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// isStatus reports whether err carries the given Maps API status. The SDK
// formats these as "maps: STATUS - message".
func isStatus(err error, status string) bool {
	return strings.Contains(err.Error(), status)
}
