package handler

import (
	"net/http"
	"strings"

	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/api/response"
	"github.com/trajet/trajet/internal/routing"
)

// maxQueryLength bounds free-text address queries.
const maxQueryLength = 200

// Lookup is the routing surface used by the stateless endpoints.
type Lookup interface {
	routing.Geocoder
	routing.Suggester
	routing.Router
}

// LookupHandler handles sessionless geocoding, autocomplete and routing.
type LookupHandler struct {
	lookup Lookup
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(lookup Lookup) *LookupHandler {
	return &LookupHandler{lookup: lookup}
}

// Geocode handles GET /v1/geocode?text= - resolve an address to a point.
func (h *LookupHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	text, ok := queryText(w, r, true)
	if !ok {
		return
	}

	place, err := h.lookup.Geocode(r.Context(), text)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.PlaceResponse{
		Label:    place.Label,
		Position: models.PointFrom(place.Position),
	})
}

// Suggestions handles GET /v1/suggestions?text= - address autocomplete.
func (h *LookupHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	text, ok := queryText(w, r, false)
	if !ok {
		return
	}

	suggestions, err := h.lookup.Suggest(r.Context(), text)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []routing.Suggestion{}
	}
	response.JSON(w, r, http.StatusOK, models.SuggestionsResponse{Query: text, Suggestions: suggestions})
}

// ComputeRoute handles POST /v1/routes:compute - route between two points or a point and an address.
func (h *LookupHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteComputeRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	req := routing.DirectionsRequest{
		Origin:     input.Origin.Coordinate(),
		AvoidTolls: input.AvoidTolls,
	}
	if input.Destination != nil {
		req.Destination = input.Destination.Coordinate()
	} else {
		place, err := h.lookup.Geocode(r.Context(), input.DestinationText)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		req.Destination = place.Position
	}

	route, err := h.lookup.Directions(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRouteResponse(req, route))
}

func queryText(w http.ResponseWriter, r *http.Request, required bool) (string, bool) {
	text := r.URL.Query().Get("text")
	switch {
	case required && strings.TrimSpace(text) == "":
		response.BadRequest(w, r, "text is required", []models.FieldError{
			{Field: "text", Message: "is required", Code: "required"},
		})
		return "", false
	case len([]rune(text)) > maxQueryLength:
		response.BadRequest(w, r, "text is too long", []models.FieldError{
			{Field: "text", Message: "must be at most 200 characters", Code: "max"},
		})
		return "", false
	}
	return text, true
}
