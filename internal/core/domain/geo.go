package domain

import (
	"fmt"

	"github.com/samirrijal/tourguide/internal/pkg/geospatial"
)

// Coordinate represents a geographic coordinate (WGS 84) in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// DistanceTo returns the great-circle distance to other in meters.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return geospatial.Haversine(c.Latitude, c.Longitude, other.Latitude, other.Longitude)
}

// Validate fails with ErrInvalidCoordinate when c is outside the WGS 84 ranges.
func (c Coordinate) Validate() error {
	if !geospatial.ValidLatLng(c.Latitude, c.Longitude) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, c.Latitude, c.Longitude)
	}
	return nil
}

func (c Coordinate) latLng() geospatial.LatLng {
	return geospatial.LatLng{c.Latitude, c.Longitude}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsAround returns the box enclosing a circle of radiusMeters around c.
func BoundsAround(c Coordinate, radiusMeters float64) Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(c.Latitude, c.Longitude, radiusMeters)
	return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

// Contains reports whether c lies within the box.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}
