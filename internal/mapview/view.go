package mapview

import (
	"encoding/json"

	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/planner"
	"github.com/trajet/trajet/internal/routing"
	"github.com/trajet/trajet/pkg/polyline"
)

// Marker kinds.
const (
	KindUser        = "user"
	KindStart       = "start"
	KindDestination = "destination"
	KindIncident    = "incident"
)

// TileLayer is the base map layer.
type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Marker is a point drawn on the map.
type Marker struct {
	Kind     string             `json:"kind"`
	Position routing.Coordinate `json:"position"`
	Icon     Icon               `json:"icon"`
	Popup    string             `json:"popup"`
	Category incident.Category  `json:"category,omitempty"`
}

// Polyline is the drawn route.
type Polyline struct {
	Positions []routing.Coordinate `json:"positions"`
	Encoded   string               `json:"encoded"`
	Color     string               `json:"color"`
}

// Bounds is the box enclosing the route.
type Bounds struct {
	SouthWest routing.Coordinate `json:"southWest"`
	NorthEast routing.Coordinate `json:"northEast"`
}

// Summary is the displayed route summary.
type Summary struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Distance        string  `json:"distance"`
	Duration        string  `json:"duration"`
}

// View is everything needed to draw the map for one state.
type View struct {
	Center  routing.Coordinate `json:"center"`
	Zoom    int                `json:"zoom"`
	Tiles   TileLayer          `json:"tiles"`
	Markers []Marker           `json:"markers"`
	Route   *Polyline          `json:"route,omitempty"`
	Bounds  *Bounds            `json:"bounds,omitempty"`
	Summary *Summary           `json:"summary,omitempty"`
}

// Render builds the view for a state. It has no side effects.
func Render(st planner.State, style Style) View {
	v := View{
		Center:  style.DefaultCenter,
		Zoom:    style.Zoom,
		Tiles:   TileLayer{URL: style.TileURL, Attribution: style.Attribution},
		Markers: []Marker{},
	}

	if st.UserPosition != nil {
		v.Center = *st.UserPosition
		v.Markers = append(v.Markers, Marker{
			Kind:     KindUser,
			Position: *st.UserPosition,
			Icon:     style.UserIcon,
			Popup:    "📍 Vous êtes ici",
		})
	}
	if st.Destination != nil {
		v.Markers = append(v.Markers, Marker{
			Kind:     KindDestination,
			Position: *st.Destination,
			Icon:     style.DestinationIcon,
			Popup:    "Destination",
		})
	}
	if st.Start != nil {
		v.Markers = append(v.Markers, Marker{
			Kind:     KindStart,
			Position: *st.Start,
			Icon:     style.StartIcon,
			Popup:    "Départ",
		})
	}

	if len(st.Route) > 0 {
		points := make([]polyline.Coordinate, len(st.Route))
		for i, c := range st.Route {
			points[i] = polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
		}
		v.Route = &Polyline{
			Positions: append([]routing.Coordinate{}, st.Route...),
			Encoded:   polyline.Encode(points),
			Color:     style.PolylineColor,
		}
		if sw, ne, ok := polyline.Bounds(points); ok {
			v.Bounds = &Bounds{
				SouthWest: routing.Coordinate{Lat: sw.Lat, Lon: sw.Lon},
				NorthEast: routing.Coordinate{Lat: ne.Lat, Lon: ne.Lon},
			}
		}
	}

	for _, inc := range st.Incidents {
		v.Markers = append(v.Markers, Marker{
			Kind:     KindIncident,
			Position: inc.Position,
			Icon:     style.IncidentIcons[inc.Category],
			Popup:    "🚨 " + inc.Category.Label(),
			Category: inc.Category,
		})
	}

	if st.Summary != nil {
		v.Summary = &Summary{
			DistanceMeters:  st.Summary.DistanceMeters,
			DurationSeconds: st.Summary.DurationSeconds,
			Distance:        st.Summary.DistanceText(),
			Duration:        st.Summary.DurationText(),
		}
	}

	return v
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string                 `json:"type"`
	Geometry   geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// GeoJSON encodes the markers and route as an RFC 7946 FeatureCollection.
// Positions are written in [lon, lat] order.
func (v View) GeoJSON() ([]byte, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}

	for _, m := range v.Markers {
		props := map[string]interface{}{
			"kind":  m.Kind,
			"popup": m.Popup,
			"icon":  m.Icon.URL,
		}
		if m.Category != "" {
			props["category"] = string(m.Category)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "Point", Coordinates: m.Position.LonLat()},
			Properties: props,
		})
	}

	if v.Route != nil {
		line := make([][]float64, len(v.Route.Positions))
		for i, c := range v.Route.Positions {
			line[i] = c.LonLat()
		}
		props := map[string]interface{}{
			"kind":  "route",
			"color": v.Route.Color,
		}
		if v.Summary != nil {
			props["distance"] = v.Summary.Distance
			props["duration"] = v.Summary.Duration
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "LineString", Coordinates: line},
			Properties: props,
		})
	}

	return json.Marshal(fc)
}
