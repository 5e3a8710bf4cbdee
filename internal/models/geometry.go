package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WGS84SRID is the spatial reference AIS providers report positions in.
const WGS84SRID = 4326

// Point is a single position in (longitude, latitude) axis order.
// SRID records the reference the coordinates are expressed in; the store
// reprojects into the configured SRID on write.
type Point struct {
	Lon  float64
	Lat  float64
	SRID int
}

// NewWGS84Point builds a point from provider coordinates.
func NewWGS84Point(lon, lat float64) Point {
	return Point{Lon: lon, Lat: lat, SRID: WGS84SRID}
}

// Orb returns the point as an orb geometry.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Value implements driver.Valuer and returns GeoJSON for ST_GeomFromGeoJSON.
func (p Point) Value() (driver.Value, error) {
	data, err := geojson.NewGeometry(p.Orb()).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point to GeoJSON: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for ST_AsGeoJSON output.
func (p *Point) Scan(value interface{}) error {
	g, err := scanGeoJSON(value)
	if err != nil || g == nil {
		return err
	}

	pt, ok := g.(orb.Point)
	if !ok {
		return fmt.Errorf("expected Point type, got %s", g.GeoJSONType())
	}

	p.Lon, p.Lat = pt.Lon(), pt.Lat()
	if p.SRID == 0 {
		p.SRID = WGS84SRID
	}
	return nil
}

// MarshalJSON renders the point as a GeoJSON geometry.
func (p Point) MarshalJSON() ([]byte, error) {
	return geojson.NewGeometry(p.Orb()).MarshalJSON()
}

// Polygon is a PostGIS polygon backed by an orb.Polygon.
// Rings are closed: the first vertex is repeated at the end.
type Polygon struct {
	Geometry orb.Polygon
	SRID     int
}

// NewPolygon builds a single-ring polygon from vertices given in ring order,
// closing the ring when the caller did not.
func NewPolygon(vertices []orb.Point, srid int) Polygon {
	ring := make(orb.Ring, 0, len(vertices)+1)
	ring = append(ring, vertices...)
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return Polygon{Geometry: orb.Polygon{ring}, SRID: srid}
}

// Vertices returns the distinct vertices of the outer ring, without the
// closing point.
func (p Polygon) Vertices() []orb.Point {
	if len(p.Geometry) == 0 {
		return nil
	}
	ring := p.Geometry[0]
	if len(ring) > 1 && ring.Closed() {
		return ring[:len(ring)-1]
	}
	return ring
}

// IsEmpty reports whether the polygon has no coordinates.
func (p Polygon) IsEmpty() bool {
	return len(p.Geometry) == 0 || len(p.Geometry[0]) == 0
}

// Value implements driver.Valuer for writing polygon geometry to database.
// Returns GeoJSON string to be used with ST_GeomFromGeoJSON in raw SQL queries.
func (p Polygon) Value() (driver.Value, error) {
	if p.IsEmpty() {
		return nil, nil
	}

	data, err := geojson.NewGeometry(p.Geometry).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon to GeoJSON: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for ST_AsGeoJSON output.
func (p *Polygon) Scan(value interface{}) error {
	g, err := scanGeoJSON(value)
	if err != nil || g == nil {
		return err
	}

	poly, ok := g.(orb.Polygon)
	if !ok {
		return fmt.Errorf("expected Polygon type, got %s", g.GeoJSONType())
	}

	p.Geometry = poly
	if p.SRID == 0 {
		p.SRID = WGS84SRID
	}
	return nil
}

func scanGeoJSON(value interface{}) (orb.Geometry, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case json.RawMessage:
		data = v
	default:
		return nil, fmt.Errorf("failed to scan geometry: expected []byte or string, got %T", value)
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON geometry: %w", err)
	}
	return g.Geometry(), nil
}
