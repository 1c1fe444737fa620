// Package planner holds the route-planning session state and the pure
// transitions applied to it for each user action.
//
// Every transition takes a State value and returns the next one; nothing here
// performs I/O. Asynchronous work (suggestions, address resolution, routing) is
// bracketed by a Begin/Apply pair sharing a sequence token, so a result that
// arrives after a newer request was started is discarded with ErrSuperseded.
package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/routing"
)

// Errors returned by transitions.
var (
	// ErrPreconditionFailed indicates the action is not possible in the current state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrSuperseded indicates an asynchronous result belongs to a request that is no longer the latest.
	ErrSuperseded = errors.New("request superseded by a newer one")
)

// LocationLabel is the label of the synthetic start option that uses the device position.
const LocationLabel = "Ma localisation"

// LocationOption is always offered first for the start field.
var LocationOption = routing.Suggestion{Label: LocationLabel, Key: "location", IsLocation: true}

// Field identifies an address input.
type Field string

// Address inputs.
const (
	FieldStart       Field = "start"
	FieldDestination Field = "destination"
)

// ParseField validates a raw field name.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldStart, FieldDestination:
		return Field(s), nil
	default:
		return "", fmt.Errorf("%w: unknown field %q", ErrPreconditionFailed, s)
	}
}

// Seq holds the latest sequence token issued for each asynchronous operation.
type Seq struct {
	StartSuggest       uint64 `json:"startSuggest"`
	DestinationSuggest uint64 `json:"destinationSuggest"`
	StartResolve       uint64 `json:"startResolve"`
	Route              uint64 `json:"route"`
}

// State is the complete planning state of one session.
type State struct {
	UserPosition     *routing.Coordinate `json:"userPosition,omitempty"`
	GeolocationError string              `json:"geolocationError,omitempty"`

	Start            *routing.Coordinate  `json:"start,omitempty"`
	StartLabel       string               `json:"startLabel,omitempty"`
	StartInput       string               `json:"startInput"`
	StartSuggestions []routing.Suggestion `json:"startSuggestions"`

	DestinationInput       string               `json:"destinationInput"`
	DestinationSuggestions []routing.Suggestion `json:"destinationSuggestions"`
	DestinationText        string               `json:"destinationText"`
	Destination            *routing.Coordinate  `json:"destination,omitempty"`

	Route      []routing.Coordinate  `json:"route,omitempty"`
	Summary    *routing.RouteSummary `json:"summary,omitempty"`
	AvoidTolls bool                  `json:"avoidTolls"`

	IncidentDialogOpen bool                `json:"incidentDialogOpen"`
	SelectedCategory   incident.Category   `json:"selectedCategory,omitempty"`
	Incidents          []incident.Incident `json:"incidents"`

	Seq Seq `json:"seq"`
}

// New returns the initial state.
func New() State {
	return State{
		StartSuggestions:       []routing.Suggestion{},
		DestinationSuggestions: []routing.Suggestion{},
		Incidents:              []incident.Incident{},
	}
}

// Clone returns a deep copy, so a transition on the copy never aliases s.
func (s State) Clone() State {
	c := s
	c.UserPosition = clonePoint(s.UserPosition)
	c.Start = clonePoint(s.Start)
	c.Destination = clonePoint(s.Destination)
	if s.Summary != nil {
		summary := *s.Summary
		c.Summary = &summary
	}
	c.StartSuggestions = append([]routing.Suggestion{}, s.StartSuggestions...)
	c.DestinationSuggestions = append([]routing.Suggestion{}, s.DestinationSuggestions...)
	c.Incidents = append([]incident.Incident{}, s.Incidents...)
	if s.Route != nil {
		c.Route = append([]routing.Coordinate{}, s.Route...)
	}
	return c
}

func clonePoint(p *routing.Coordinate) *routing.Coordinate {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// StartOptions returns the choices offered for the start field: the location
// option followed by the current suggestions.
func (s State) StartOptions() []routing.Suggestion {
	return append([]routing.Suggestion{LocationOption}, s.StartSuggestions...)
}

// ApplyGeolocation records the one-time position fix. On success the position
// becomes both the user position and the start. On failure the user position
// falls back to fallback and the start stays unset. Once an outcome is recorded
// later reports are ignored.
func ApplyGeolocation(s State, pos routing.Coordinate, err error, fallback routing.Coordinate) State {
	next := s.Clone()
	if s.UserPosition != nil {
		return next
	}
	if err != nil {
		next.UserPosition = &fallback
		next.GeolocationError = err.Error()
		return next
	}

	next.UserPosition = &pos
	next.GeolocationError = ""
	start := pos
	next.Start = &start
	next.StartLabel = LocationLabel
	return next
}

// SetInput stores the text typed in an address field and issues a new
// suggestion token. Text shorter than routing.MinSuggestLength clears the
// field's suggestions and needs no lookup.
func SetInput(s State, field Field, text string) (next State, token uint64, lookup bool) {
	next = s.Clone()
	short := utf8.RuneCountInString(text) < routing.MinSuggestLength

	switch field {
	case FieldStart:
		next.StartInput = text
		next.Seq.StartSuggest++
		token = next.Seq.StartSuggest
		if short {
			next.StartSuggestions = []routing.Suggestion{}
		}
	case FieldDestination:
		next.DestinationInput = text
		next.Seq.DestinationSuggest++
		token = next.Seq.DestinationSuggest
		if short {
			next.DestinationSuggestions = []routing.Suggestion{}
		}
	default:
		return s, 0, false
	}

	return next, token, !short
}

// ApplySuggestions replaces the field's suggestions if token is still current.
func ApplySuggestions(s State, field Field, token uint64, suggestions []routing.Suggestion) (State, error) {
	if suggestions == nil {
		suggestions = []routing.Suggestion{}
	}

	next := s.Clone()
	switch field {
	case FieldStart:
		if token != s.Seq.StartSuggest {
			return s, ErrSuperseded
		}
		next.StartSuggestions = append([]routing.Suggestion{}, suggestions...)
	case FieldDestination:
		if token != s.Seq.DestinationSuggest {
			return s, ErrSuperseded
		}
		next.DestinationSuggestions = append([]routing.Suggestion{}, suggestions...)
	default:
		return s, fmt.Errorf("%w: unknown field %q", ErrPreconditionFailed, field)
	}
	return next, nil
}

// UseMyLocation sets the start to the user position. It also supersedes any
// pending start resolution.
func UseMyLocation(s State) (State, error) {
	if s.UserPosition == nil {
		return s, fmt.Errorf("%w: user position unknown", ErrPreconditionFailed)
	}

	next := s.Clone()
	next.Seq.StartResolve++
	next.Start = clonePoint(s.UserPosition)
	next.StartLabel = LocationLabel
	return next, nil
}

// BeginStartResolve issues a token for resolving a chosen start address.
func BeginStartResolve(s State) (State, uint64) {
	next := s.Clone()
	next.Seq.StartResolve++
	return next, next.Seq.StartResolve
}

// ApplyStartResolved sets the start from a resolved place if token is still current.
func ApplyStartResolved(s State, token uint64, place routing.Place) (State, error) {
	if token != s.Seq.StartResolve {
		return s, ErrSuperseded
	}

	next := s.Clone()
	pos := place.Position
	next.Start = &pos
	next.StartLabel = place.Label
	return next, nil
}

// SelectDestination stores the chosen destination address. The destination is
// only geocoded when a route is computed.
func SelectDestination(s State, label string) (State, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return s, fmt.Errorf("%w: destination is empty", ErrPreconditionFailed)
	}

	next := s.Clone()
	next.DestinationText = label
	return next, nil
}

// SetAvoidTolls sets the toll preference used by the next route computation.
func SetAvoidTolls(s State, avoid bool) State {
	next := s.Clone()
	next.AvoidTolls = avoid
	return next
}

// RouteRequest captures everything a route computation needs, taken from the
// state when it starts.
type RouteRequest struct {
	Token           uint64
	Origin          routing.Coordinate
	DestinationText string
	AvoidTolls      bool
}

// BeginRoute checks the route preconditions and issues a route token.
func BeginRoute(s State) (State, RouteRequest, error) {
	if s.Start == nil {
		return s, RouteRequest{}, fmt.Errorf("%w: start is not set", ErrPreconditionFailed)
	}
	if strings.TrimSpace(s.DestinationText) == "" {
		return s, RouteRequest{}, fmt.Errorf("%w: destination is empty", ErrPreconditionFailed)
	}

	next := s.Clone()
	next.Seq.Route++
	return next, RouteRequest{
		Token:           next.Seq.Route,
		Origin:          *s.Start,
		DestinationText: s.DestinationText,
		AvoidTolls:      s.AvoidTolls,
	}, nil
}

// ApplyRoute replaces destination, route and summary together if token is
// still current.
func ApplyRoute(s State, token uint64, destination routing.Coordinate, route *routing.Route) (State, error) {
	if token != s.Seq.Route {
		return s, ErrSuperseded
	}
	if route == nil {
		return s, fmt.Errorf("%w: empty route", routing.ErrMalformedResponse)
	}

	next := s.Clone()
	next.Destination = &destination
	next.Route = append([]routing.Coordinate{}, route.Geometry...)
	summary := route.Summary
	next.Summary = &summary
	return next, nil
}

// OpenIncidentDialog opens the incident dialog.
func OpenIncidentDialog(s State) State {
	next := s.Clone()
	next.IncidentDialogOpen = true
	return next
}

// CloseIncidentDialog closes the dialog without reporting. The selected category is kept.
func CloseIncidentDialog(s State) State {
	next := s.Clone()
	next.IncidentDialogOpen = false
	return next
}

// SelectIncidentCategory selects the category for the next report.
func SelectIncidentCategory(s State, c incident.Category) (State, error) {
	if !c.Valid() {
		return s, fmt.Errorf("%w: %q", incident.ErrUnknownCategory, c)
	}

	next := s.Clone()
	next.SelectedCategory = c
	return next, nil
}

// ReportIncident appends an incident at the user position, closes the dialog
// and clears the selection. With no user position or no selected category the
// state is returned unchanged.
func ReportIncident(s State, now time.Time) (State, *incident.Incident, error) {
	if s.UserPosition == nil {
		return s, nil, fmt.Errorf("%w: user position unknown", ErrPreconditionFailed)
	}
	if s.SelectedCategory == "" {
		return s, nil, fmt.Errorf("%w: no incident category selected", ErrPreconditionFailed)
	}

	inc := incident.New(s.SelectedCategory, *s.UserPosition, now)

	next := s.Clone()
	next.Incidents = append(next.Incidents, inc)
	next.IncidentDialogOpen = false
	next.SelectedCategory = ""
	return next, &inc, nil
}
