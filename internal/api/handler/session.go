package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/trajet/trajet/internal/api/models"
	"github.com/trajet/trajet/internal/api/response"
	"github.com/trajet/trajet/internal/geolocation"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/mapview"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/session"
)

// TokenIssuer issues bearer tokens for new sessions.
type TokenIssuer interface {
	Issue(sessionID string) (token string, expiresAt time.Time, err error)
}

// SessionConfig holds the SessionHandler dependencies.
type SessionConfig struct {
	Store   session.Store
	Tokens  TokenIssuer
	Planner *planner.Service
	Style   mapview.Style
	Logger  zerolog.Logger
}

// SessionHandler handles the planning session endpoints. Each handler applies
// one user action to the session state and answers with the resulting state.
type SessionHandler struct {
	store   session.Store
	tokens  TokenIssuer
	planner *planner.Service
	style   mapview.Style
	logger  zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(cfg SessionConfig) *SessionHandler {
	return &SessionHandler{
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		planner: cfg.Planner,
		style:   cfg.Style,
		logger:  cfg.Logger,
	}
}

// CreateSession handles POST /v1/sessions - start a session and issue its token.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, st, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create session")
		response.FromError(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(id)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("failed to issue session token")
		if delErr := h.store.Delete(context.WithoutCancel(r.Context()), id); delErr != nil {
			h.logger.Warn().Err(delErr).Str("session_id", id).Msg("failed to discard session")
		}
		response.InternalError(w, r, "could not issue session token")
		return
	}

	h.logger.Info().Str("session_id", id).Msg("session created")
	response.Created(w, r, "/v1/session", models.SessionCreated{
		SessionID: id,
		Token:     token,
		ExpiresAt: models.Timestamp(expiresAt),
		State:     st,
	})
}

// GetState handles GET /v1/session - current planning state.
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.planner.State(r.Context(), id)
	h.respondState(w, r, st, err)
}

// EndSession handles DELETE /v1/session - discard the session.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// ReportGeolocation handles POST /v1/session/geolocation - the browser's one-time position fix.
func (h *SessionHandler) ReportGeolocation(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.GeolocationRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	var locator geolocation.Locator = geolocation.Failed(input.Error)
	if input.Position != nil {
		locator = geolocation.Fixed(input.Position.Coordinate())
	}

	st, err := h.planner.ReportGeolocation(r.Context(), id, locator)
	h.respondState(w, r, st, err)
}

// UpdateStartInput handles PUT /v1/session/start/input - a keystroke in the start field.
func (h *SessionHandler) UpdateStartInput(w http.ResponseWriter, r *http.Request) {
	h.updateInput(w, r, planner.FieldStart)
}

// UpdateDestinationInput handles PUT /v1/session/destination/input - a keystroke in the destination field.
func (h *SessionHandler) UpdateDestinationInput(w http.ResponseWriter, r *http.Request) {
	h.updateInput(w, r, planner.FieldDestination)
}

func (h *SessionHandler) updateInput(w http.ResponseWriter, r *http.Request, field planner.Field) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.InputRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	st, err := h.planner.UpdateInput(r.Context(), id, field, input.Text)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	token := st.Seq.StartSuggest
	if field == planner.FieldDestination {
		token = st.Seq.DestinationSuggest
	}
	response.JSON(w, r, http.StatusOK, models.InputResponse{Token: token, State: st})
}

// SelectStart handles POST /v1/session/start - pick a start suggestion or the device position.
func (h *SessionHandler) SelectStart(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.StartRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	var (
		st  *planner.State
		err error
	)
	if input.UseMyLocation || input.Label == planner.LocationLabel {
		st, err = h.planner.UseMyLocation(r.Context(), id)
	} else {
		st, err = h.planner.SelectStart(r.Context(), id, input.Label)
	}
	h.respondState(w, r, st, err)
}

// SelectDestination handles POST /v1/session/destination - pick the destination address.
func (h *SessionHandler) SelectDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.DestinationRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	st, err := h.planner.SelectDestination(r.Context(), id, input.Text)
	h.respondState(w, r, st, err)
}

// UpdateOptions handles PUT /v1/session/options - route preferences.
func (h *SessionHandler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.OptionsRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	st, err := h.planner.SetAvoidTolls(r.Context(), id, *input.AvoidTolls)
	h.respondState(w, r, st, err)
}

// ComputeRoute handles POST /v1/session/route - route from the start to the destination.
func (h *SessionHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.planner.ComputeRoute(r.Context(), id)
	h.respondState(w, r, st, err)
}

// OpenIncidentDialog handles POST /v1/session/incident-dialog.
func (h *SessionHandler) OpenIncidentDialog(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.planner.OpenIncidentDialog(r.Context(), id)
	h.respondState(w, r, st, err)
}

// CloseIncidentDialog handles DELETE /v1/session/incident-dialog.
func (h *SessionHandler) CloseIncidentDialog(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.planner.CloseIncidentDialog(r.Context(), id)
	h.respondState(w, r, st, err)
}

// SelectIncidentCategory handles PUT /v1/session/incident-dialog/category.
func (h *SessionHandler) SelectIncidentCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var input models.CategoryRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	category, err := incident.ParseCategory(input.Category)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	st, err := h.planner.SelectIncidentCategory(r.Context(), id, category)
	h.respondState(w, r, st, err)
}

// ReportIncident handles POST /v1/session/incidents - drop an incident at the user position.
func (h *SessionHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, inc, err := h.planner.ReportIncident(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, r, "", models.IncidentReported{Incident: inc, State: st})
}

// GetMap handles GET /v1/session/map - the map view for the current state.
func (h *SessionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	view, ok := h.render(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

// GetMapGeoJSON handles GET /v1/session/map.geojson - the map view as a FeatureCollection.
func (h *SessionHandler) GetMapGeoJSON(w http.ResponseWriter, r *http.Request) {
	view, ok := h.render(w, r)
	if !ok {
		return
	}
	body, err := view.GeoJSON()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode map view")
		response.InternalError(w, r, "could not encode map view")
		return
	}
	response.GeoJSON(w, r, body)
}

func (h *SessionHandler) render(w http.ResponseWriter, r *http.Request) (mapview.View, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return mapview.View{}, false
	}
	st, err := h.planner.State(r.Context(), id)
	if err != nil {
		response.FromError(w, r, err)
		return mapview.View{}, false
	}
	return mapview.Render(*st, h.style), true
}

func (h *SessionHandler) respondState(w http.ResponseWriter, r *http.Request, st *planner.State, err error) {
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, st)
}

// sessionID returns the authenticated session, writing a 401 when there is none.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := GetSessionID(r.Context())
	if id == "" {
		response.Unauthorized(w, r, "missing session")
		return "", false
	}
	return id, true
}
