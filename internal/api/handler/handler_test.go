package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/trajet/trajet/internal/api/handler"
	"github.com/trajet/trajet/internal/api/middleware"
	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/mapview"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/session"
)

var (
	paris = routing.Coordinate{Lat: 48.8566, Lon: 2.3522}
	lyon  = routing.Coordinate{Lat: 45.757814, Lon: 4.835659}
)

// fakeProvider answers every lookup from fixed data.
type fakeProvider struct {
	mu          sync.Mutex
	places      map[string]routing.Place
	suggestions []routing.Suggestion
	route       *routing.Route
	routeErr    error
	last        routing.DirectionsRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		places: map[string]routing.Place{
			"Lyon":  {Label: "Lyon, France", Position: lyon},
			"Paris": {Label: "Paris, France", Position: paris},
		},
		suggestions: []routing.Suggestion{
			{Label: "Lyon, France", Key: "101748027"},
			{Label: "Lyon 7e Arrondissement, Lyon, France", Key: "Lyon 7e Arrondissement, Lyon, France-1"},
		},
		route: &routing.Route{
			Geometry: []routing.Coordinate{paris, {Lat: 47.0, Lon: 3.6}, lyon},
			Summary:  routing.RouteSummary{DistanceMeters: 465200.4, DurationSeconds: 16320.2},
			Provider: "fake",
		},
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Geocode(_ context.Context, text string) (*routing.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.places[text]
	if !ok {
		return nil, &routing.Error{Provider: "fake", Code: "NO_MATCH", Message: text, Err: routing.ErrNoMatch}
	}
	return &p, nil
}

func (f *fakeProvider) Suggest(_ context.Context, _ string) ([]routing.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestions, nil
}

func (f *fakeProvider) Directions(_ context.Context, req routing.DirectionsRequest) (*routing.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.routeErr != nil {
		return nil, f.routeErr
	}
	return f.route, nil
}

type testEnv struct {
	store    *session.MemoryStore
	tokens   *session.TokenService
	provider *fakeProvider
	routing  *routing.Service
	sessions *handler.SessionHandler
	lookups  *handler.LookupHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := newFakeProvider()
	routingSvc := routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
		CacheTTL: -1,
	})
	store := session.NewMemoryStore(time.Hour)
	tokens := session.NewTokenService(session.TokenConfig{
		SigningKey: "handler-test-signing-key",
		Issuer:     "https://api.trajet.fr",
		Audience:   "trajet-api",
		TTL:        time.Hour,
	})
	plannerSvc := planner.NewService(planner.ServiceConfig{
		Store:     store,
		Geocoder:  routingSvc,
		Suggester: routingSvc,
		Router:    routingSvc,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) },
	})

	return &testEnv{
		store:    store,
		tokens:   tokens,
		provider: provider,
		routing:  routingSvc,
		sessions: handler.NewSessionHandler(handler.SessionConfig{
			Store:   store,
			Tokens:  tokens,
			Planner: plannerSvc,
			Style:   mapview.DefaultStyle(),
			Logger:  zerolog.Nop(),
		}),
		lookups: handler.NewLookupHandler(routingSvc),
	}
}

// newSession creates a session directly in the store.
func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	id, _, err := e.store.Create(context.Background())
	require.NoError(t, err)
	return id
}

// call invokes h with an optional session and JSON body.
func call(t *testing.T, h http.HandlerFunc, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req = req.WithContext(middleware.WithSessionID(req.Context(), sessionID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	return decodeBody[models.Problem](t, rec)
}
