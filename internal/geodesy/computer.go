package geodesy

import (
	"github.com/stwalsh4118/seawatch/internal/models"
)

// Computer derives buffers with a fixed radius and resolution.
type Computer struct {
	RadiusMeters float64
	Resolution   int
}

// NewComputer returns a Computer, falling back to the port defaults
// (3 km, 10 vertices) for unset values.
func NewComputer(radiusMeters float64, resolution int) Computer {
	if radiusMeters == 0 {
		radiusMeters = DefaultRadiusMeters
	}
	if resolution == 0 {
		resolution = DefaultResolution
	}
	return Computer{RadiusMeters: radiusMeters, Resolution: resolution}
}

// PortBuffer computes the buffer around a port's representative point.
// Coordinates are WGS84; the store reprojects on write.
func (c Computer) PortBuffer(port models.Port) (models.Polygon, error) {
	poly, err := Buffer(port.Latitude, port.Longitude, c.RadiusMeters, c.Resolution)
	if err != nil {
		return models.Polygon{}, err
	}
	return models.Polygon{Geometry: poly, SRID: models.WGS84SRID}, nil
}
