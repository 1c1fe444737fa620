// Package incident defines the transient road incidents a traveller can drop
// on the map at their current position.
package incident

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trajet/trajet/internal/routing"
)

// ErrUnknownCategory is returned when a category is outside the closed set.
var ErrUnknownCategory = errors.New("unknown incident category")

// Category is the kind of incident.
type Category string

// Supported categories. The set is closed.
const (
	CategoryAccident Category = "accident"
	CategoryTraffic  Category = "traffic"
	CategoryPolice   Category = "police"
	CategoryClosure  Category = "closure"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryAccident,
	CategoryTraffic,
	CategoryPolice,
	CategoryClosure,
}

var labels = map[Category]string{
	CategoryAccident: "Accident",
	CategoryTraffic:  "Embouteillage",
	CategoryPolice:   "Contrôle policier",
	CategoryClosure:  "Route fermée",
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	_, ok := labels[c]
	return ok
}

// Label returns the French display label.
func (c Category) Label() string {
	return labels[c]
}

// ParseCategory validates a raw category value.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Incident is a reported road event. Incidents are never mutated once created.
type Incident struct {
	ID         string             `json:"id"`
	Category   Category           `json:"category"`
	Position   routing.Coordinate `json:"position"`
	ReportedAt time.Time          `json:"reportedAt"`
}

// New creates an incident at pos.
func New(category Category, pos routing.Coordinate, now time.Time) Incident {
	return Incident{
		ID:         uuid.NewString(),
		Category:   category,
		Position:   pos,
		ReportedAt: now.UTC(),
	}
}
