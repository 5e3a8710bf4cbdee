// Package geodesy computes geodesic buffers on the WGS84 ellipsoid.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/geodesic"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Defaults used for port buffers.
const (
	DefaultRadiusMeters = 3000.0
	DefaultResolution   = 10
	MinResolution       = 3
	MaxResolution       = 360
)

// ErrGeometry reports invalid geometric input.
var ErrGeometry = errors.New("invalid geometry input")

// Buffer returns a polygon approximating the geodesic disk of radiusMeters
// around (lat, lon) on the WGS84 ellipsoid.
//
// Vertices are sampled at headings 0, step, 2*step, ... below 360 where
// step = 360 / resolution with integer division. When resolution does not
// divide 360 the ring therefore holds more than resolution vertices.
// The returned ring is closed.
func Buffer(lat, lon, radiusMeters float64, resolution int) (orb.Polygon, error) {
	if err := validate(lat, lon, radiusMeters, resolution); err != nil {
		return nil, err
	}

	step := MaxResolution / resolution
	ring := make(orb.Ring, 0, MaxResolution/step+2)
	for angle := 0; angle < MaxResolution; angle += step {
		var lat2, lon2 float64
		geodesic.WGS84.Direct(lat, lon, float64(angle), radiusMeters, &lat2, &lon2, nil)
		ring = append(ring, orb.Point{lon2, lat2})
	}
	ring = append(ring, ring[0])

	return orb.Polygon{ring}, nil
}

// Distance returns the geodesic distance in meters between two points
// on the WGS84 ellipsoid.
func Distance(a, b orb.Point) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat(), a.Lon(), b.Lat(), b.Lon(), &s12, nil, nil)
	return s12
}

func validate(lat, lon, radiusMeters float64, resolution int) error {
	if math.IsNaN(lat) || lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrGeometry, MinLatitude, MaxLatitude, lat)
	}
	if math.IsNaN(lon) || lon < MinLongitude || lon > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrGeometry, MinLongitude, MaxLongitude, lon)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be a positive number of meters, got %f",
			ErrGeometry, radiusMeters)
	}
	// Fewer than three headings cannot form a ring.
	if resolution < MinResolution || resolution > MaxResolution {
		return fmt.Errorf("%w: resolution must be between %d and %d, got %d",
			ErrGeometry, MinResolution, MaxResolution, resolution)
	}
	return nil
}
