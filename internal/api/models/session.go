package models

import (
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/planner"
)

// SessionCreated is returned by POST /v1/sessions.
type SessionCreated struct {
	SessionID string         `json:"sessionId"`
	Token     string         `json:"token"`
	ExpiresAt Timestamp      `json:"expiresAt"`
	State     *planner.State `json:"state"`
}

// GeolocationRequest reports the browser's one-time position fix, or why it failed.
type GeolocationRequest struct {
	Position *Point `json:"position,omitempty" validate:"required_without=Error"`
	Error    string `json:"error,omitempty" validate:"required_without=Position,max=200"`
}

// InputRequest carries the current text of an address field.
type InputRequest struct {
	Text string `json:"text" validate:"max=200"`
}

// InputResponse is the state after a keystroke together with the token that
// the matching suggestion lookup was issued under.
type InputResponse struct {
	Token uint64         `json:"token"`
	State *planner.State `json:"state"`
}

// StartRequest selects the start address: either a suggestion label or the device position.
type StartRequest struct {
	Label         string `json:"label,omitempty" validate:"required_without=UseMyLocation,max=200"`
	UseMyLocation bool   `json:"useMyLocation,omitempty"`
}

// DestinationRequest selects the destination address.
type DestinationRequest struct {
	Text string `json:"text" validate:"required,max=200"`
}

// OptionsRequest updates route options.
type OptionsRequest struct {
	AvoidTolls *bool `json:"avoidTolls" validate:"required"`
}

// CategoryRequest selects the category in the incident dialog.
type CategoryRequest struct {
	Category string `json:"category" validate:"required,oneof=accident traffic police closure"`
}

// IncidentReported is returned after an incident is added.
type IncidentReported struct {
	Incident *incident.Incident `json:"incident"`
	State    *planner.State     `json:"state"`
}
