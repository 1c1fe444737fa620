// Package response provides utilities for HTTP response handling.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trajet/trajet/internal/api/middleware"
	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/provider/resilience"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/internal/session"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// GeoJSON writes an already encoded GeoJSON document.
func GeoJSON(w http.ResponseWriter, r *http.Request, body []byte) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Created writes a 201 Created response with a Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// Unauthorized writes a 401 Unauthorized error response.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(middleware.GetRequestID(r.Context()), detail))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// FromError maps a domain error to its problem document and writes it.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, ProblemFor(middleware.GetRequestID(r.Context()), err))
}

// ProblemFor maps a domain error to a problem document.
func ProblemFor(traceID string, err error) *models.Problem {
	detail := err.Error()

	switch {
	case errors.Is(err, planner.ErrPreconditionFailed):
		return models.NewPreconditionFailed(traceID, detail)
	case errors.Is(err, planner.ErrSuperseded):
		return models.NewSuperseded(traceID, detail)
	case errors.Is(err, incident.ErrUnknownCategory):
		return models.NewBadRequest(traceID, detail, []models.FieldError{
			{Field: "category", Message: detail, Code: "oneof"},
		})

	case errors.Is(err, session.ErrNotFound):
		return models.NewUnauthorized(traceID, "session expired or unknown")
	case errors.Is(err, session.ErrConflict):
		return models.NewConflict(traceID, "session was modified concurrently, retry the request")

	case errors.Is(err, routing.ErrNoMatch):
		return models.NewNoMatch(traceID, detail)
	case errors.Is(err, routing.ErrNoRouteFound):
		return models.NewNoRoute(traceID, detail)
	case errors.Is(err, routing.ErrInvalidCoordinates):
		return models.NewBadRequest(traceID, detail, nil)
	case errors.Is(err, routing.ErrRateLimitExceeded):
		return models.NewTooManyRequests(traceID, "routing provider quota exceeded")
	case errors.Is(err, routing.ErrMalformedResponse):
		return models.NewBadGateway(traceID, detail)
	case errors.Is(err, context.Canceled):
		return models.NewServiceUnavailable(traceID, "request cancelled")
	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		return models.NewServiceUnavailable(traceID, detail)

	default:
		return models.NewInternalError(traceID, "an unexpected error occurred")
	}
}
