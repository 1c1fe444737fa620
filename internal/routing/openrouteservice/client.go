// Package openrouteservice provides a client for the OpenRouteService geocoding
// and directions APIs.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultProfile is the driving profile used for directions.
	DefaultProfile = "driving-car"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key. Calls fail as provider errors when empty.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Country restricts geocoding and autocomplete (optional, defaults to FR).
	Country string

	// Profile is the directions profile (optional, defaults to driving-car).
	Profile string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries is passed to the default resilient client (optional, defaults to 0).
	MaxRetries uint64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	country := cfg.Country
	if country == "" {
		country = routing.DefaultCountry
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = cfg.MaxRetries
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		country:    country,
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode resolves an address with GET /geocode/search and returns the first candidate.
func (c *Client) Geocode(ctx context.Context, text string) (*routing.Place, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("text", text)
	params.Set("boundary.country", c.country)

	var places placeCollection
	if err := c.get(ctx, "/geocode/search", params, &places); err != nil {
		return nil, err
	}

	if len(places.Features) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_MATCH",
			Message:  fmt.Sprintf("no candidate for %q", text),
			Err:      routing.ErrNoMatch,
		}
	}

	first := places.Features[0]
	pos, err := routing.FromLonLat(first.Geometry.Coordinates)
	if err != nil {
		return nil, malformed(err)
	}

	c.logger.Debug().
		Str("address", text).
		Str("label", first.Properties.Label).
		Int("candidates", len(places.Features)).
		Msg("geocoded address with ORS")

	return &routing.Place{Label: first.Properties.Label, Position: pos}, nil
}

// Suggest fetches autocomplete suggestions with GET /geocode/autocomplete.
func (c *Client) Suggest(ctx context.Context, text string) ([]routing.Suggestion, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("text", text)
	params.Set("size", strconv.Itoa(routing.MaxSuggestions))
	params.Set("boundary_country", c.country)

	var places placeCollection
	if err := c.get(ctx, "/geocode/autocomplete", params, &places); err != nil {
		return nil, err
	}

	suggestions := make([]routing.Suggestion, 0, len(places.Features))
	for i := range places.Features {
		props := places.Features[i].Properties
		suggestions = append(suggestions, routing.Suggestion{
			Label: props.Label,
			Key:   routing.SuggestionKey(props.ID, props.Label, i),
		})
	}

	return suggestions, nil
}

// Directions computes a route with POST /v2/directions/{profile}/geojson.
func (c *Client) Directions(ctx context.Context, req routing.DirectionsRequest) (*routing.Route, error) {
	body := directionsRequest{
		// ORS uses [lon, lat] order (GeoJSON)
		Coordinates: [][]float64{
			req.Origin.LonLat(),
			req.Destination.LonLat(),
		},
	}
	if req.AvoidTolls {
		body.Options = &directionsOptions{AvoidFeatures: []string{avoidTollways}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, c.profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", c.profile).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Bool("avoid_tolls", req.AvoidTolls).
		Msg("requesting directions from ORS")

	var fc featureCollection
	if err := c.send(httpReq, &fc); err != nil {
		return nil, err
	}

	route, err := toRoute(&fc)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("points", len(route.Geometry)).
		Float64("distance_m", route.Summary.DistanceMeters).
		Float64("duration_s", route.Summary.DurationSeconds).
		Msg("received directions from ORS")

	return route, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json, application/geo+json")
	return c.send(httpReq, out)
}

// send executes the request and decodes a 200 body into out.
func (c *Client) send(httpReq *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      errors.Join(routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &routing.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read provider response",
			Err:      routing.ErrProviderUnavailable,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return malformed(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// handleErrorResponse maps ORS error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	_ = json.Unmarshal(body, &orsErr)

	message := orsErr.Error.Message
	if message == "" {
		message = fmt.Sprintf("routing provider returned status %d", statusCode)
	}

	c.logger.Debug().
		Int("status", statusCode).
		Int("ors_code", orsErr.Error.Code).
		Str("message", message).
		Msg("ORS error response")

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	case statusCode == http.StatusNotFound,
		orsErr.Error.Code == orsErrorCodeNotFound,
		orsErr.Error.Code == orsErrorCodePointNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  message,
			Err:      routing.ErrNoRouteFound,
		}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  message,
			Err:      routing.ErrInvalidCoordinates,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toRoute converts the first GeoJSON feature to a domain route.
func toRoute(fc *featureCollection) (*routing.Route, error) {
	if len(fc.Features) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "directions response contains no route",
			Err:      routing.ErrNoRouteFound,
		}
	}

	first := &fc.Features[0]
	if first.Properties.Summary == nil {
		return nil, malformed(fmt.Errorf("route has no summary"))
	}

	if len(first.Geometry.Coordinates) < 2 {
		return nil, malformed(fmt.Errorf("route geometry has %d points", len(first.Geometry.Coordinates)))
	}

	geometry := make([]routing.Coordinate, 0, len(first.Geometry.Coordinates))
	for _, pos := range first.Geometry.Coordinates {
		// Directions may carry elevation as a third value
		if len(pos) > 2 {
			pos = pos[:2]
		}
		coord, err := routing.FromLonLat(pos)
		if err != nil {
			return nil, malformed(err)
		}
		geometry = append(geometry, coord)
	}

	summary := first.Properties.Summary
	if summary.Distance < 0 || summary.Duration < 0 {
		return nil, malformed(fmt.Errorf("negative summary distance=%f duration=%f", summary.Distance, summary.Duration))
	}

	return &routing.Route{
		Geometry: geometry,
		Summary: routing.RouteSummary{
			DistanceMeters:  summary.Distance,
			DurationSeconds: summary.Duration,
		},
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

func malformed(err error) error {
	return &routing.Error{
		Provider: ProviderName,
		Code:     "MALFORMED_RESPONSE",
		Message:  err.Error(),
		Err:      routing.ErrMalformedResponse,
	}
}
