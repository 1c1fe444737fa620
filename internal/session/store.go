// Package session stores planner state per browser session and issues the
// bearer tokens that identify a session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/trajet/trajet/internal/planner"
)

// Store errors.
var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when an update kept losing to concurrent writers.
	ErrConflict = errors.New("session update conflict")
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// Store persists planner state per session. Update applies fn to a copy of
// the state and writes it back only when fn succeeds, serialized per session.
type Store interface {
	planner.Store

	// Create starts a session with the initial planner state.
	Create(ctx context.Context) (id string, state *planner.State, err error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}
