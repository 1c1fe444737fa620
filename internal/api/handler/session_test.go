package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trajet/trajet/internal/api/handler"
	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/geolocation"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/mapview"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/routing"
)

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	rec := call(t, env.sessions.CreateSession, http.MethodPost, "/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/session", rec.Header().Get("Location"))

	created := decodeBody[models.SessionCreated](t, rec)
	require.NotEmpty(t, created.SessionID)
	require.NotNil(t, created.State)
	assert.Empty(t, created.State.Incidents)

	claims, err := env.tokens.Validate(created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, claims.SessionID)

	_, err = env.store.Get(context.Background(), created.SessionID)
	assert.NoError(t, err)
}

type failingIssuer struct{}

func (failingIssuer) Issue(string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing key unavailable")
}

func TestCreateSession_TokenFailureDiscardsSession(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewSessionHandler(handler.SessionConfig{
		Store:   env.store,
		Tokens:  failingIssuer{},
		Planner: planner.NewService(planner.ServiceConfig{Store: env.store}),
		Style:   mapview.DefaultStyle(),
		Logger:  zerolog.Nop(),
	})

	rec := call(t, h.CreateSession, http.MethodPost, "/v1/sessions", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, env.store.Len())
}

func TestSessionFlow_ParisToLyon(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Position: &models.Point{Lat: paris.Lat, Lon: paris.Lon}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[planner.State](t, rec)
	require.NotNil(t, st.Start)
	assert.Equal(t, paris, *st.Start)

	rec = call(t, env.sessions.UpdateDestinationInput, http.MethodPut, "/v1/session/destination/input", id,
		models.InputRequest{Text: "Lyo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	input := decodeBody[models.InputResponse](t, rec)
	assert.Equal(t, uint64(1), input.Token)
	assert.Len(t, input.State.DestinationSuggestions, 2)

	rec = call(t, env.sessions.SelectDestination, http.MethodPost, "/v1/session/destination", id,
		models.DestinationRequest{Text: "Lyon"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, env.sessions.ComputeRoute, http.MethodPost, "/v1/session/route", id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st = decodeBody[planner.State](t, rec)
	require.NotNil(t, st.Summary)
	assert.Equal(t, "465.20 km", st.Summary.DistanceText())
	assert.Equal(t, "4h 32min", st.Summary.DurationText())
	assert.Len(t, st.Route, 3)
	require.NotNil(t, st.Destination)
	assert.Equal(t, lyon, *st.Destination)

	rec = call(t, env.sessions.GetMap, http.MethodGet, "/v1/session/map", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[mapview.View](t, rec)
	require.NotNil(t, view.Route)
	require.NotNil(t, view.Summary)
	assert.Equal(t, "465.20 km", view.Summary.Distance)
	require.Len(t, view.Markers, 3)
	assert.Equal(t, mapview.KindUser, view.Markers[0].Kind)

	rec = call(t, env.sessions.GetMapGeoJSON, http.MethodGet, "/v1/session/map.geojson", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)
	assert.Contains(t, rec.Body.String(), `"LineString"`)
}

func TestGeolocationFailure_UsesFallback(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Error: "User denied Geolocation"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st := decodeBody[planner.State](t, rec)
	require.NotNil(t, st.UserPosition)
	assert.Equal(t, geolocation.FallbackPosition, *st.UserPosition)
	assert.NotEmpty(t, st.GeolocationError)
}

func TestGeolocation_RepeatedReportIgnored(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Position: &models.Point{Lat: paris.Lat, Lon: paris.Lon}})
	rec := call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Position: &models.Point{Lat: lyon.Lat, Lon: lyon.Lon}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st := decodeBody[planner.State](t, rec)
	require.NotNil(t, st.UserPosition)
	assert.Equal(t, paris, *st.UserPosition)
	assert.Equal(t, paris, *st.Start)
}

func TestComputeRoute_Errors(t *testing.T) {
	t.Run("no start", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.newSession(t)

		rec := call(t, env.sessions.ComputeRoute, http.MethodPost, "/v1/session/route", id, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, models.ProblemTypePrecondition, decodeProblem(t, rec).Type)
	})

	t.Run("unknown destination", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.newSession(t)
		call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
			models.GeolocationRequest{Position: &models.Point{Lat: paris.Lat, Lon: paris.Lon}})
		call(t, env.sessions.SelectDestination, http.MethodPost, "/v1/session/destination", id,
			models.DestinationRequest{Text: "Atlantis"})

		rec := call(t, env.sessions.ComputeRoute, http.MethodPost, "/v1/session/route", id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, models.ProblemTypeNoMatch, decodeProblem(t, rec).Type)

		st, err := env.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, st.Summary)
	})

	t.Run("provider down", func(t *testing.T) {
		env := newTestEnv(t)
		env.provider.routeErr = &routing.Error{Provider: "fake", Code: "HTTP_503", Message: "down", Err: routing.ErrProviderUnavailable}
		id := env.newSession(t)
		call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
			models.GeolocationRequest{Position: &models.Point{Lat: paris.Lat, Lon: paris.Lon}})
		call(t, env.sessions.SelectDestination, http.MethodPost, "/v1/session/destination", id,
			models.DestinationRequest{Text: "Lyon"})

		rec := call(t, env.sessions.ComputeRoute, http.MethodPost, "/v1/session/route", id, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSelectStart(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := call(t, env.sessions.SelectStart, http.MethodPost, "/v1/session/start", id,
		models.StartRequest{Label: "Paris"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[planner.State](t, rec)
	require.NotNil(t, st.Start)
	assert.Equal(t, paris, *st.Start)
	assert.Equal(t, "Paris, France", st.StartLabel)

	// Using the device position without a fix is not possible.
	rec = call(t, env.sessions.SelectStart, http.MethodPost, "/v1/session/start", id,
		models.StartRequest{UseMyLocation: true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Position: &models.Point{Lat: lyon.Lat, Lon: lyon.Lon}})
	rec = call(t, env.sessions.SelectStart, http.MethodPost, "/v1/session/start", id,
		models.StartRequest{Label: planner.LocationLabel})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st = decodeBody[planner.State](t, rec)
	assert.Equal(t, lyon, *st.Start)
}

func TestUpdateOptions(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := call(t, env.sessions.UpdateOptions, http.MethodPut, "/v1/session/options", id, `{"avoidTolls":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[planner.State](t, rec).AvoidTolls)

	rec = call(t, env.sessions.UpdateOptions, http.MethodPut, "/v1/session/options", id, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	call(t, env.sessions.ReportGeolocation, http.MethodPost, "/v1/session/geolocation", id,
		models.GeolocationRequest{Position: &models.Point{Lat: paris.Lat, Lon: paris.Lon}})

	rec := call(t, env.sessions.OpenIncidentDialog, http.MethodPost, "/v1/session/incident-dialog", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[planner.State](t, rec).IncidentDialogOpen)

	rec = call(t, env.sessions.ReportIncident, http.MethodPost, "/v1/session/incidents", id, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no category selected yet")

	rec = call(t, env.sessions.SelectIncidentCategory, http.MethodPut, "/v1/session/incident-dialog/category", id,
		models.CategoryRequest{Category: "police"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, env.sessions.ReportIncident, http.MethodPost, "/v1/session/incidents", id, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reported := decodeBody[models.IncidentReported](t, rec)
	require.NotNil(t, reported.Incident)
	assert.Equal(t, incident.CategoryPolice, reported.Incident.Category)
	assert.Equal(t, paris, reported.Incident.Position)
	assert.False(t, reported.State.IncidentDialogOpen)
	assert.Len(t, reported.State.Incidents, 1)

	rec = call(t, env.sessions.GetMap, http.MethodGet, "/v1/session/map", id, nil)
	view := decodeBody[mapview.View](t, rec)
	last := view.Markers[len(view.Markers)-1]
	assert.Equal(t, mapview.KindIncident, last.Kind)
	assert.Equal(t, "🚨 Contrôle policier", last.Popup)
}

func TestCloseIncidentDialog(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	call(t, env.sessions.OpenIncidentDialog, http.MethodPost, "/v1/session/incident-dialog", id, nil)
	rec := call(t, env.sessions.CloseIncidentDialog, http.MethodDelete, "/v1/session/incident-dialog", id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[planner.State](t, rec).IncidentDialogOpen)
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	tests := []struct {
		name  string
		h     http.HandlerFunc
		body  string
		field string
		code  string
	}{
		{"destination missing", env.sessions.SelectDestination, `{}`, "text", "required"},
		{"bad category", env.sessions.SelectIncidentCategory, `{"category":"meteor"}`, "category", "oneof"},
		{"empty geolocation", env.sessions.ReportGeolocation, `{}`, "position", "required_without"},
		{"latitude out of range", env.sessions.ReportGeolocation, `{"position":{"lat":91,"lon":0}}`, "position.lat", "lte"},
		{"start missing", env.sessions.SelectStart, `{}`, "label", "required_without"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, tt.h, http.MethodPost, "/v1/session/x", id, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			p := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			found := false
			for _, fe := range p.Errors {
				if fe.Field == tt.field && fe.Code == tt.code {
					found = true
				}
			}
			assert.True(t, found, "expected %s/%s in %+v", tt.field, tt.code, p.Errors)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	for _, body := range []string{`{"text":`, `{"text":"Lyon","extra":1}`, `[]`} {
		rec := call(t, env.sessions.SelectDestination, http.MethodPost, "/v1/session/destination", id, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	rec := call(t, env.sessions.GetState, http.MethodGet, "/v1/session", "sess-gone", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, env.sessions.GetState, http.MethodGet, "/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := call(t, env.sessions.EndSession, http.MethodDelete, "/v1/session", id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, env.sessions.GetState, http.MethodGet, "/v1/session", id, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
