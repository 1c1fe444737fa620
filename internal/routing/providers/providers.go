// Package providers builds the configured routing provider.
package providers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/config"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/routing/googlemaps"
	"github.com/trajet/trajet/internal/routing/openrouteservice"
)

// New returns the provider selected by cfg.RoutingProvider. Its HTTP client
// is registered in registry for health reporting.
func New(cfg config.Config, registry *resilience.Registry, logger zerolog.Logger) (routing.Provider, error) {
	switch cfg.RoutingProvider {
	case config.ProviderOpenRouteService:
		if cfg.ORSAPIKey == "" {
			logger.Warn().Msg("ORS_API_KEY not set - provider calls will fail")
		}
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:     cfg.ORSAPIKey,
			BaseURL:    cfg.ORSBaseURL,
			Country:    cfg.GeocodeCountry,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
			Registry:   registry,
			Logger:     logger,
		}), nil

	case config.ProviderGoogleMaps:
		if cfg.GoogleMapsAPIKey == "" {
			logger.Warn().Msg("GOOGLE_MAPS_API_KEY not set - provider calls will fail")
		}
		client, err := googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:     cfg.GoogleMapsAPIKey,
			Country:    cfg.GeocodeCountry,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
			Registry:   registry,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown routing provider %q", cfg.RoutingProvider)
	}
}
