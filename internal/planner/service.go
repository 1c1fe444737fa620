package planner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/geolocation"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/routing"
)

// Store persists planning state per session.
// Update must apply fn atomically: when fn returns an error nothing is written.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (*State, error)
}

// ServiceConfig holds the planner dependencies.
type ServiceConfig struct {
	Store     Store
	Geocoder  routing.Geocoder
	Suggester routing.Suggester
	Router    routing.Router
	Logger    zerolog.Logger

	// Fallback is the user position used when the geolocation fix fails.
	// Defaults to geolocation.FallbackPosition.
	Fallback *routing.Coordinate

	// Now returns the current time (optional, defaults to time.Now).
	Now func() time.Time
}

// Service applies user actions to session state. Provider calls run outside
// the store's update so a slow lookup never blocks other actions.
type Service struct {
	store     Store
	geocoder  routing.Geocoder
	suggester routing.Suggester
	router    routing.Router
	logger    zerolog.Logger
	fallback  routing.Coordinate
	now       func() time.Time
}

// NewService creates a new planner service.
func NewService(cfg ServiceConfig) *Service {
	fallback := geolocation.FallbackPosition
	if cfg.Fallback != nil {
		fallback = *cfg.Fallback
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:     cfg.Store,
		geocoder:  cfg.Geocoder,
		suggester: cfg.Suggester,
		router:    cfg.Router,
		logger:    cfg.Logger,
		fallback:  fallback,
		now:       now,
	}
}

// State returns the current state of a session.
func (s *Service) State(ctx context.Context, sessionID string) (*State, error) {
	return s.store.Get(ctx, sessionID)
}

// ReportGeolocation reads the locator once and records the outcome.
// A failed fix is not an error for the caller: the fallback position applies.
func (s *Service) ReportGeolocation(ctx context.Context, sessionID string, locator geolocation.Locator) (*State, error) {
	pos, locErr := locator.Locate(ctx)
	if locErr != nil {
		s.logger.Warn().Err(locErr).
			Str("session_id", sessionID).
			Msg("geolocation unavailable, using fallback position")
	}

	return s.store.Update(ctx, sessionID, func(st *State) error {
		*st = ApplyGeolocation(*st, pos, locErr, s.fallback)
		return nil
	})
}

// UpdateInput stores typed text for a field and refreshes its suggestions.
// Returns ErrSuperseded when a newer keystroke arrived while the lookup ran.
func (s *Service) UpdateInput(ctx context.Context, sessionID string, field Field, text string) (*State, error) {
	var (
		token  uint64
		lookup bool
	)
	st, err := s.store.Update(ctx, sessionID, func(st *State) error {
		if _, err := ParseField(string(field)); err != nil {
			return err
		}
		*st, token, lookup = SetInput(*st, field, text)
		return nil
	})
	if err != nil || !lookup {
		return st, err
	}

	suggestions, err := s.suggester.Suggest(ctx, text)
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_id", sessionID).
			Str("field", string(field)).
			Msg("autocomplete failed")
		return nil, err
	}

	return s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := ApplySuggestions(*st, field, token, suggestions)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// SelectStart resolves a chosen start address and makes it the start.
func (s *Service) SelectStart(ctx context.Context, sessionID, label string) (*State, error) {
	var token uint64
	if _, err := s.store.Update(ctx, sessionID, func(st *State) error {
		*st, token = BeginStartResolve(*st)
		return nil
	}); err != nil {
		return nil, err
	}

	place, err := s.geocoder.Geocode(ctx, label)
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_id", sessionID).
			Str("address", label).
			Msg("start address resolution failed")
		return nil, err
	}

	return s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := ApplyStartResolved(*st, token, *place)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// UseMyLocation makes the user position the start.
func (s *Service) UseMyLocation(ctx context.Context, sessionID string) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := UseMyLocation(*st)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// SelectDestination stores the destination address.
func (s *Service) SelectDestination(ctx context.Context, sessionID, label string) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := SelectDestination(*st, label)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// SetAvoidTolls sets the toll preference.
func (s *Service) SetAvoidTolls(ctx context.Context, sessionID string, avoid bool) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		*st = SetAvoidTolls(*st, avoid)
		return nil
	})
}

// ComputeRoute resolves the destination and computes a route from the start.
// On failure the displayed destination, route and summary are left as they were.
func (s *Service) ComputeRoute(ctx context.Context, sessionID string) (*State, error) {
	var req RouteRequest
	if _, err := s.store.Update(ctx, sessionID, func(st *State) error {
		next, r, err := BeginRoute(*st)
		if err != nil {
			return err
		}
		*st, req = next, r
		return nil
	}); err != nil {
		return nil, err
	}

	log := s.logger.With().
		Str("session_id", sessionID).
		Str("destination", req.DestinationText).
		Bool("avoid_tolls", req.AvoidTolls).
		Logger()

	dest, err := s.geocoder.Geocode(ctx, req.DestinationText)
	if err != nil {
		log.Error().Err(err).Msg("destination resolution failed")
		return nil, err
	}

	route, err := s.router.Directions(ctx, routing.DirectionsRequest{
		Origin:      req.Origin,
		Destination: dest.Position,
		AvoidTolls:  req.AvoidTolls,
	})
	if err != nil {
		log.Error().Err(err).Msg("route calculation failed")
		return nil, err
	}

	st, err := s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := ApplyRoute(*st, req.Token, dest.Position, route)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
	if errors.Is(err, ErrSuperseded) {
		log.Debug().Uint64("token", req.Token).Msg("dropping superseded route")
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("distance", route.Summary.DistanceText()).
		Str("duration", route.Summary.DurationText()).
		Int("points", len(route.Geometry)).
		Msg("route computed")
	return st, nil
}

// OpenIncidentDialog opens the incident dialog.
func (s *Service) OpenIncidentDialog(ctx context.Context, sessionID string) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		*st = OpenIncidentDialog(*st)
		return nil
	})
}

// CloseIncidentDialog closes the incident dialog.
func (s *Service) CloseIncidentDialog(ctx context.Context, sessionID string) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		*st = CloseIncidentDialog(*st)
		return nil
	})
}

// SelectIncidentCategory selects the category for the next report.
func (s *Service) SelectIncidentCategory(ctx context.Context, sessionID string, c incident.Category) (*State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		next, err := SelectIncidentCategory(*st, c)
		if err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// ReportIncident drops an incident at the user position.
func (s *Service) ReportIncident(ctx context.Context, sessionID string) (*State, *incident.Incident, error) {
	var reported *incident.Incident
	st, err := s.store.Update(ctx, sessionID, func(st *State) error {
		next, inc, err := ReportIncident(*st, s.now())
		if err != nil {
			return err
		}
		*st, reported = next, inc
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("incident_id", reported.ID).
		Str("category", string(reported.Category)).
		Msg("incident reported")
	return st, reported, nil
}
