package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"
)

// LatLng is a bare [lat, lon] pair in degrees.
type LatLng [2]float64

// EncodePolyline encodes a path using the Google encoded polyline format
// (precision 5), the format most map SDKs accept for overlays.
func EncodePolyline(path []LatLng) string {
	coords := make([][]float64, len(path))
	for i, p := range path {
		coords[i] = []float64{p[0], p[1]}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline reverses EncodePolyline.
func DecodePolyline(encoded string) ([]LatLng, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}

	path := make([]LatLng, len(coords))
	for i, c := range coords {
		path[i] = LatLng{c[0], c[1]}
	}
	return path, nil
}

// LineStringFeature renders a path as a GeoJSON LineString feature.
// GeoJSON orders positions as [lon, lat].
func LineStringFeature(path []LatLng, props map[string]any) *geojson.Feature {
	ls := make(orb.LineString, len(path))
	for i, p := range path {
		ls[i] = orb.Point{p[1], p[0]}
	}

	f := geojson.NewFeature(ls)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// PathLength sums the Haversine lengths of consecutive segments, in meters.
func PathLength(path []LatLng) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1][0], path[i-1][1], path[i][0], path[i][1])
	}
	return total
}
