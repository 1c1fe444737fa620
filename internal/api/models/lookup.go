package models

import (
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/pkg/polyline"
)

// PlaceResponse is a resolved address.
type PlaceResponse struct {
	Label    string `json:"label"`
	Position Point  `json:"position"`
}

// SuggestionsResponse lists autocomplete entries.
type SuggestionsResponse struct {
	Query       string               `json:"query"`
	Suggestions []routing.Suggestion `json:"suggestions"`
}

// RouteComputeRequest asks for a route without a session. The destination is
// either a point or an address to resolve first.
type RouteComputeRequest struct {
	Origin          *Point `json:"origin" validate:"required"`
	Destination     *Point `json:"destination,omitempty" validate:"required_without=DestinationText"`
	DestinationText string `json:"destinationText,omitempty" validate:"required_without=Destination,max=200"`
	AvoidTolls      bool   `json:"avoidTolls"`
}

// RouteSummary is the aggregate of a route with its display text.
type RouteSummary struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Distance        string  `json:"distance"`
	Duration        string  `json:"duration"`
}

// RouteResponse is a computed route.
type RouteResponse struct {
	Provider    string       `json:"provider"`
	Origin      Point        `json:"origin"`
	Destination Point        `json:"destination"`
	Geometry    []Point      `json:"geometry"`
	Polyline    string       `json:"polyline"`
	Summary     RouteSummary `json:"summary"`
	AvoidTolls  bool         `json:"avoidTolls"`
	FetchedAt   Timestamp    `json:"fetchedAt"`
}

// NewRouteResponse converts a routing result.
func NewRouteResponse(req routing.DirectionsRequest, route *routing.Route) RouteResponse {
	geometry := make([]Point, len(route.Geometry))
	encoded := make([]polyline.Coordinate, len(route.Geometry))
	for i, c := range route.Geometry {
		geometry[i] = PointFrom(c)
		encoded[i] = polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
	}
	return RouteResponse{
		Provider:    route.Provider,
		Origin:      PointFrom(req.Origin),
		Destination: PointFrom(req.Destination),
		Geometry:    geometry,
		Polyline:    polyline.Encode(encoded),
		Summary: RouteSummary{
			DistanceMeters:  route.Summary.DistanceMeters,
			DurationSeconds: route.Summary.DurationSeconds,
			Distance:        route.Summary.DistanceText(),
			Duration:        route.Summary.DurationText(),
		},
		AvoidTolls: req.AvoidTolls,
		FetchedAt:  Timestamp(route.FetchedAt),
	}
}
