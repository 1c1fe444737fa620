package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trajet/trajet/internal/api/models"
)

func TestGeocode(t *testing.T) {
	env := newTestEnv(t)

	rec := call(t, env.lookups.Geocode, http.MethodGet, "/v1/geocode?text=Lyon", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	place := decodeBody[models.PlaceResponse](t, rec)
	assert.Equal(t, "Lyon, France", place.Label)
	assert.Equal(t, models.PointFrom(lyon), place.Position)

	rec = call(t, env.lookups.Geocode, http.MethodGet, "/v1/geocode?text=Atlantis", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ProblemTypeNoMatch, decodeProblem(t, rec).Type)

	rec = call(t, env.lookups.Geocode, http.MethodGet, "/v1/geocode?text=%20%20", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t)

	rec := call(t, env.lookups.Suggestions, http.MethodGet, "/v1/suggestions?text=Lyo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[models.SuggestionsResponse](t, rec)
	assert.Equal(t, "Lyo", resp.Query)
	assert.Len(t, resp.Suggestions, 2)

	rec = call(t, env.lookups.Suggestions, http.MethodGet, "/v1/suggestions?text=Ly", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"Ly","suggestions":[]}`, rec.Body.String())
}

func TestComputeRoute_Stateless(t *testing.T) {
	env := newTestEnv(t)

	rec := call(t, env.lookups.ComputeRoute, http.MethodPost, "/v1/routes:compute", "",
		`{"origin":{"lat":48.8566,"lon":2.3522},"destinationText":"Lyon","avoidTolls":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[models.RouteResponse](t, rec)
	assert.Equal(t, "fake", resp.Provider)
	assert.Equal(t, models.PointFrom(lyon), resp.Destination)
	assert.Len(t, resp.Geometry, 3)
	assert.NotEmpty(t, resp.Polyline)
	assert.Equal(t, "465.20 km", resp.Summary.Distance)
	assert.True(t, resp.AvoidTolls)
	assert.True(t, env.provider.last.AvoidTolls)
}

func TestComputeRoute_StatelessValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"no origin", `{"destinationText":"Lyon"}`},
		{"no destination", `{"origin":{"lat":48.8566,"lon":2.3522}}`},
		{"origin out of range", `{"origin":{"lat":48.8566,"lon":200},"destinationText":"Lyon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, env.lookups.ComputeRoute, http.MethodPost, "/v1/routes:compute", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}
