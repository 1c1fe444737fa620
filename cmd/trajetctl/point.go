package main

import (
	"strconv"
	"strings"

	"github.com/trajet/trajet/internal/routing"
)

// parsePoint reads "lat,lon". Anything else is treated as an address by the caller.
func parsePoint(s string) (routing.Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return routing.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return routing.Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return routing.Coordinate{}, false
	}
	return routing.Coordinate{Lat: lat, Lon: lon}, true
}
