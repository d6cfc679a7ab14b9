package geospatial

import (
	"encoding/json"
	"math"
	"testing"
)

func TestHaversine_Identity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{51.4416, 5.4697},
		{-33.8688, 151.2093},
		{89.9, -179.9},
	}
	for _, p := range points {
		if d := Haversine(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("Haversine(%v, %v) = %f; want 0", p, p, d)
		}
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"eindhoven-nuenen", 51.4416, 5.4697, 51.4583, 5.5583},
		{"across meridian", 10, 179.5, 10, -179.5},
		{"hemispheres", -45, 20, 45, -20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ab := Haversine(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			ba := Haversine(tc.lat2, tc.lon2, tc.lat1, tc.lon1)
			if math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("asymmetric distance: %f vs %f", ab, ba)
			}
		})
	}
}

func TestHaversine_EindhovenNuenen(t *testing.T) {
	d := Haversine(51.4416, 5.4697, 51.4583, 5.5583)
	if d < 6300 || d > 6500 {
		t.Fatalf("expected ~6.3-6.5 km, got %.1f m", d)
	}
}

func TestHaversine_MatchesS2(t *testing.T) {
	d := Haversine(51.4416, 5.4697, 51.4826, 5.6552)
	s2d := AngularDistance(51.4416, 5.4697, 51.4826, 5.6552) * EarthRadiusMeters
	if math.Abs(d-s2d) > 0.01 {
		t.Fatalf("haversine %f differs from s2 %f", d, s2d)
	}
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(51.44, 5.47, 1000)
	if d := Haversine(51.44, 5.47, maxLat, 5.47); math.Abs(d-1000) > 5 {
		t.Errorf("north edge at %f m; want ~1000", d)
	}
	if d := Haversine(51.44, 5.47, 51.44, minLon); math.Abs(d-1000) > 5 {
		t.Errorf("west edge at %f m; want ~1000", d)
	}
	if minLat >= maxLat || minLon >= maxLon {
		t.Fatal("box is inverted")
	}
}

func TestValidLatLng(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"near corners", 89.9, -179.9, true},
		{"lat too high", 90.0001, 0, false},
		{"lon too low", 0, -180.5, false},
		{"nan", math.NaN(), 0, false},
		{"inf", 0, math.Inf(1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidLatLng(tc.lat, tc.lon); got != tc.want {
				t.Fatalf("ValidLatLng(%v, %v) = %v; want %v", tc.lat, tc.lon, got, tc.want)
			}
		})
	}
}

func TestInterpolate(t *testing.T) {
	lat, lon := Interpolate(50, 4, 52, 6, 0.25)
	if lat != 50.5 || lon != 4.5 {
		t.Fatalf("got %f,%f; want 50.5,4.5", lat, lon)
	}
}

func TestPolyline_RoundTrip(t *testing.T) {
	path := []LatLng{{51.4416, 5.4697}, {51.45, 5.51}, {51.4583, 5.5583}}

	decoded, err := DecodePolyline(EncodePolyline(path))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(path) {
		t.Fatalf("expected %d points, got %d", len(path), len(decoded))
	}
	for i := range path {
		if math.Abs(decoded[i][0]-path[i][0]) > 1e-5 || math.Abs(decoded[i][1]-path[i][1]) > 1e-5 {
			t.Errorf("point %d: got %v; want %v", i, decoded[i], path[i])
		}
	}
}

func TestLineStringFeature_LonLatOrder(t *testing.T) {
	f := LineStringFeature([]LatLng{{51.0, 5.0}, {52.0, 6.0}}, map[string]any{"mode": "walking"})

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out struct {
		Geometry struct {
			Type        string       `json:"type"`
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Geometry.Type != "LineString" {
		t.Fatalf("expected LineString, got %s", out.Geometry.Type)
	}
	if out.Geometry.Coordinates[0] != [2]float64{5.0, 51.0} {
		t.Errorf("expected [lon, lat], got %v", out.Geometry.Coordinates[0])
	}
	if out.Properties["mode"] != "walking" {
		t.Errorf("expected mode property, got %v", out.Properties["mode"])
	}
}

func TestPathLength(t *testing.T) {
	path := []LatLng{{51.4416, 5.4697}, {51.4583, 5.5583}}
	if got, want := PathLength(path), Haversine(51.4416, 5.4697, 51.4583, 5.5583); got != want {
		t.Fatalf("PathLength = %f; want %f", got, want)
	}
	if PathLength(nil) != 0 {
		t.Fatal("empty path must have zero length")
	}
}
