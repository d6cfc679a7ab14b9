package geospatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// metersPerDegreeLat is the length of one degree of latitude at the equator.
const metersPerDegreeLat = 111320.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegreeLat
	lonDelta := radiusMeters / (metersPerDegreeLat * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// Interpolate returns the point at fraction f along the straight lat/lon segment
// from (lat1, lon1) to (lat2, lon2). f=0 yields the start, f=1 the end.
func Interpolate(lat1, lon1, lat2, lon2, f float64) (lat, lon float64) {
	return lat1 + (lat2-lat1)*f, lon1 + (lon2-lon1)*f
}

// ValidLatLng reports whether lat/lon are finite and inside the WGS 84 ranges.
func ValidLatLng(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// AngularDistance returns the central angle between two points in radians,
// computed on the unit sphere by s2. Used to cross-check Haversine.
func AngularDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return s2.LatLngFromDegrees(lat1, lon1).Distance(s2.LatLngFromDegrees(lat2, lon2)).Radians()
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
