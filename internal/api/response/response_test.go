package response_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trajet/trajet/internal/api/middleware"
	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/api/response"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/session"
)

// requestWithContext returns a request that went through the RequestID middleware.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	return processed, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/session")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "bonjour"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["message"] != "bonjour" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Header().Get("X-Request-Id") != "" {
		t.Error("expected no X-Request-Id header")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestGeoJSON(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/session/map.geojson")

	response.GeoJSON(rec, req, []byte(`{"type":"FeatureCollection","features":[]}`))

	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %s", ct)
	}
	if rec.Body.String() != `{"type":"FeatureCollection","features":[]}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreated_IncludesLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/sessions")

	response.Created(rec, req, "/v1/session", map[string]string{"sessionId": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/session" {
		t.Errorf("expected Location /v1/session, got %s", loc)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
}

func TestNoContent(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/v1/session")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
}

func TestBadRequest_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/session/destination")

	response.BadRequest(rec, req, "invalid body", []models.FieldError{{Field: "text", Message: "required"}})

	var p models.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}
	if p.TraceID == "" || p.TraceID != rec.Header().Get("X-Request-Id") {
		t.Errorf("expected traceId to match X-Request-Id, got %q vs %q", p.TraceID, rec.Header().Get("X-Request-Id"))
	}
	if p.Instance != "/v1/session/destination" {
		t.Errorf("expected instance /v1/session/destination, got %s", p.Instance)
	}
	if len(p.Errors) != 1 || p.Errors[0].Field != "text" {
		t.Errorf("unexpected field errors: %+v", p.Errors)
	}
}

func TestSimpleProblems(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request, string)
		status int
		typ    string
	}{
		{"unauthorized", response.Unauthorized, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"not found", response.NotFound, http.StatusNotFound, models.ProblemTypeNotFound},
		{"internal", response.InternalError, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/session")
			tt.write(rec, req, "detail")

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			var p models.Problem
			if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
				t.Fatalf("failed to decode problem: %v", err)
			}
			if p.Type != tt.typ {
				t.Errorf("expected type %s, got %s", tt.typ, p.Type)
			}
		})
	}
}

func TestProblemFor(t *testing.T) {
	wrapped := func(err error) error { return fmt.Errorf("computing route: %w", err) }
	routingErr := func(err error) error {
		return &routing.Error{Provider: "openrouteservice", Code: "X", Message: "failed", Err: err}
	}

	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"precondition", wrapped(planner.ErrPreconditionFailed), http.StatusUnprocessableEntity, models.ProblemTypePrecondition},
		{"superseded", wrapped(planner.ErrSuperseded), http.StatusConflict, models.ProblemTypeSuperseded},
		{"unknown category", incident.ErrUnknownCategory, http.StatusBadRequest, models.ProblemTypeValidation},
		{"session gone", session.ErrNotFound, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"session conflict", session.ErrConflict, http.StatusConflict, models.ProblemTypeConflict},
		{"no match", routingErr(routing.ErrNoMatch), http.StatusNotFound, models.ProblemTypeNoMatch},
		{"no route", routingErr(routing.ErrNoRouteFound), http.StatusNotFound, models.ProblemTypeNoRoute},
		{"invalid coordinates", routingErr(routing.ErrInvalidCoordinates), http.StatusBadRequest, models.ProblemTypeValidation},
		{"quota", routingErr(routing.ErrRateLimitExceeded), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{"malformed", routingErr(routing.ErrMalformedResponse), http.StatusBadGateway, models.ProblemTypeUpstream},
		{"unavailable", routingErr(routing.ErrProviderUnavailable), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"circuit open", wrapped(resilience.ErrCircuitOpen), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"deadline", wrapped(context.DeadlineExceeded), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := response.ProblemFor("req_1", tt.err)
			if p.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, p.Status)
			}
			if p.Type != tt.typ {
				t.Errorf("expected type %s, got %s", tt.typ, p.Type)
			}
			if p.TraceID != "req_1" {
				t.Errorf("expected traceId req_1, got %s", p.TraceID)
			}
		})
	}
}

func TestProblemFor_ProviderTransportCause(t *testing.T) {
	tests := []struct {
		name   string
		cause  error
		detail string
	}{
		{"cancelled", context.Canceled, "request cancelled"},
		{"circuit open", resilience.ErrCircuitOpen, "circuit breaker is open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &routing.Error{
				Provider: "openrouteservice",
				Code:     "REQUEST_FAILED",
				Message:  "failed to reach routing provider",
				Err:      errors.Join(routing.ErrProviderUnavailable, tt.cause),
			}
			p := response.ProblemFor("req_1", err)
			if p.Status != http.StatusServiceUnavailable {
				t.Errorf("expected status 503, got %d", p.Status)
			}
			if !strings.Contains(p.Detail, tt.detail) {
				t.Errorf("expected detail to mention %q, got %q", tt.detail, p.Detail)
			}
		})
	}
}

func TestProblemFor_HidesInternalDetail(t *testing.T) {
	p := response.ProblemFor("req_1", errors.New("dial tcp 10.0.0.3:6379: connection refused"))
	if p.Detail != "an unexpected error occurred" {
		t.Errorf("internal error detail leaked: %s", p.Detail)
	}
}

func TestFromError(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/session/route")

	response.FromError(rec, req, planner.ErrSuperseded)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem content type, got %s", ct)
	}
}
