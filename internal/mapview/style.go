// Package mapview turns planner state into a declarative description of the
// map: tiles, markers, the route polyline and the route summary.
package mapview

import (
	"github.com/trajet/trajet/internal/geolocation"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/routing"
)

// Icon describes a marker image.
type Icon struct {
	URL         string  `json:"url"`
	Size        [2]int  `json:"size"`
	Anchor      [2]int  `json:"anchor"`
	PopupAnchor *[2]int `json:"popupAnchor,omitempty"`
	ShadowURL   string  `json:"shadowUrl,omitempty"`
}

// Style is the static rendering configuration.
type Style struct {
	TileURL         string
	Attribution     string
	UserIcon        Icon
	StartIcon       Icon
	DestinationIcon Icon
	IncidentIcons   map[incident.Category]Icon
	PolylineColor   string
	DefaultCenter   routing.Coordinate
	Zoom            int
}

const (
	markerShadowURL = "https://unpkg.com/leaflet@1.7.1/dist/images/marker-shadow.png"
	flaticonBase    = "https://cdn-icons-png.flaticon.com/512/"
)

// DefaultStyle returns the OpenStreetMap France style with Leaflet markers.
func DefaultStyle() Style {
	pinPopup := [2]int{1, -34}
	userIcon := Icon{
		URL:         "https://unpkg.com/leaflet@1.9.4/dist/images/marker-icon.png",
		Size:        [2]int{25, 41},
		Anchor:      [2]int{12, 41},
		PopupAnchor: &pinPopup,
		ShadowURL:   markerShadowURL,
	}
	destinationIcon := userIcon
	destinationIcon.URL = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-red.png"

	incidentIcon := func(path string) Icon {
		return Icon{URL: flaticonBase + path, Size: [2]int{32, 32}, Anchor: [2]int{16, 32}}
	}

	return Style{
		TileURL:         "https://{s}.tile.openstreetmap.fr/osmfr/{z}/{x}/{y}.png",
		Attribution:     "&copy; OpenStreetMap",
		UserIcon:        userIcon,
		StartIcon:       userIcon,
		DestinationIcon: destinationIcon,
		IncidentIcons: map[incident.Category]Icon{
			incident.CategoryAccident: incidentIcon("565/565547.png"),
			incident.CategoryTraffic:  incidentIcon("2331/2331970.png"),
			incident.CategoryPolice:   incidentIcon("684/684908.png"),
			incident.CategoryClosure:  incidentIcon("565/565486.png"),
		},
		PolylineColor: "blue",
		DefaultCenter: geolocation.DefaultCenter,
		Zoom:          geolocation.DefaultZoom,
	}
}
