// Package geo validates visit GPS readings and measures the route an MR
// travelled between them.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ValidateCoordinate checks an optional latitude/longitude reading. Either
// value may be absent; present values must be finite and in range.
func ValidateCoordinate(lat, lng *float64) error {
	if lat != nil {
		if math.IsNaN(*lat) || *lat < -90 || *lat > 90 {
			return fmt.Errorf("gps_lat %.6f is out of valid range [-90, 90]", *lat)
		}
	}
	if lng != nil {
		if math.IsNaN(*lng) || *lng < -180 || *lng > 180 {
			return fmt.Errorf("gps_long %.6f is out of valid range [-180, 180]", *lng)
		}
	}
	return nil
}

// Point builds an orb point from a latitude/longitude pair.
func Point(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// RouteKm returns the great-circle length of the path through points, in
// kilometres rounded to two decimals. Fewer than two points is zero.
func RouteKm(points []orb.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	meters := geo.LengthHaversine(orb.LineString(points))
	return math.Round(meters/10) / 100
}
