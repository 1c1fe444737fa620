package openrouteservice

// featureCollection is the GeoJSON envelope returned by the geocode and
// directions (geojson format) endpoints.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
	BBox     []float64 `json:"bbox,omitempty"`
}

// placeFeature is a Pelias geocoding/autocomplete result.
type placeFeature struct {
	Geometry struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties struct {
		ID         string  `json:"id,omitempty"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence,omitempty"`
		Country    string  `json:"country_a,omitempty"`
	} `json:"properties"`
}

// placeCollection is the geocode/search and geocode/autocomplete response.
type placeCollection struct {
	Features []placeFeature `json:"features"`
}

// feature is a directions route in GeoJSON form.
type feature struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"` // ordered [lon, lat]
	} `json:"geometry"`
	Properties struct {
		Summary  *routeSummary  `json:"summary"`
		Segments []routeSegment `json:"segments,omitempty"`
	} `json:"properties"`
	BBox []float64 `json:"bbox,omitempty"`
}

// directionsRequest is the body of POST /v2/directions/{profile}/geojson.
type directionsRequest struct {
	Coordinates [][]float64        `json:"coordinates"`
	Options     *directionsOptions `json:"options,omitempty"`
}

// directionsOptions carries routing restrictions.
type directionsOptions struct {
	AvoidFeatures []string `json:"avoid_features,omitempty"`
}

// routeSummary contains the aggregate of a route.
type routeSummary struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

// routeSegment is one leg of a route.
type routeSegment struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// orsErrorResponse represents an error response from ORS.
type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS error codes for error mapping.
const (
	orsErrorCodePointNotFound = 2010 // Point not routable
	orsErrorCodeNotFound      = 2009 // Route not found
)

const avoidTollways = "tollways"
