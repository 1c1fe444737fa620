// Package geolocation models the one-time device position fix taken when a
// planning session starts.
package geolocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/trajet/trajet/internal/routing"
)

// ErrUnavailable is returned when the device position cannot be read
// (permission denied, unsupported, timeout).
var ErrUnavailable = errors.New("geolocation unavailable")

// FallbackPosition is used as the user position when the fix fails (Paris).
var FallbackPosition = routing.Coordinate{Lat: 48.8566, Lon: 2.3522}

// DefaultCenter is the map center when no user position is known (France).
var DefaultCenter = routing.Coordinate{Lat: 46.603354, Lon: 1.888334}

// DefaultZoom is the initial map zoom.
const DefaultZoom = 13

// Locator reads the current device position once.
type Locator interface {
	Locate(ctx context.Context) (routing.Coordinate, error)
}

// Fixed is a Locator that always reports the same position, as sent by a client.
type Fixed routing.Coordinate

// Locate returns the fixed position.
func (f Fixed) Locate(_ context.Context) (routing.Coordinate, error) {
	pos := routing.Coordinate(f)
	if err := pos.Validate(); err != nil {
		return routing.Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pos, nil
}

// Failed is a Locator that reports a failed fix with the client-supplied reason.
type Failed string

// Locate always returns ErrUnavailable.
func (f Failed) Locate(_ context.Context) (routing.Coordinate, error) {
	if f == "" {
		return routing.Coordinate{}, ErrUnavailable
	}
	return routing.Coordinate{}, fmt.Errorf("%w: %s", ErrUnavailable, string(f))
}
