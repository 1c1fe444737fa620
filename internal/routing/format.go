package routing

import (
	"fmt"
	"math"
)

// FormatDuration renders a duration in seconds as "{h}h {m}min", or "{m}min"
// under an hour. The duration is rounded to the nearest minute first.
func FormatDuration(seconds float64) string {
	minutes := int(math.Round(seconds / 60))
	hours := minutes / 60
	remaining := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, remaining)
	}
	return fmt.Sprintf("%dmin", remaining)
}

// FormatDistance renders a distance in meters as kilometres with two decimals.
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}
