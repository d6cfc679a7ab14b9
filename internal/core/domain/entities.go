package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/tourguide/internal/pkg/geospatial"
)

// DefaultPlaceRadius is the detection radius used when a place does not set one.
const DefaultPlaceRadius = 1000.0

// Place is a point of interest with a circular detection radius.
// Places are reference data: built once from the registry and never mutated.
type Place struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	Address     string     `json:"address,omitempty" yaml:"address,omitempty"`
	ImageURL    string     `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Facts       []string   `json:"facts,omitempty" yaml:"facts,omitempty"`
	Coordinates Coordinate `json:"coordinates" yaml:"coordinates"`
	Radius      float64    `json:"radius" yaml:"radius"` // meters
}

// EffectiveRadius returns Radius, or DefaultPlaceRadius when unset.
func (p Place) EffectiveRadius() float64 {
	if p.Radius <= 0 {
		return DefaultPlaceRadius
	}
	return p.Radius
}

// PositionFix is a single observed device location.
type PositionFix struct {
	Coordinates Coordinate     `json:"coordinates"`
	Accuracy    float64        `json:"accuracy,omitempty"` // meters
	Timestamp   time.Time      `json:"timestamp"`
	DeviceID    string         `json:"device_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TransitionKind distinguishes entering and leaving a place's radius.
type TransitionKind string

const (
	TransitionEnter TransitionKind = "enter"
	TransitionLeave TransitionKind = "leave"
)

// TransitionEvent is emitted once per inside/outside change for a place.
type TransitionEvent struct {
	Kind     TransitionKind `json:"kind"`
	Place    Place          `json:"place"`
	Distance float64        `json:"distance"` // meters from the fix to the place
	Fix      PositionFix    `json:"fix"`
}

// TravelMode selects the assumed speed used for duration estimates.
type TravelMode string

const (
	TravelModeWalking TravelMode = "walking"
	TravelModeDriving TravelMode = "driving"

	DefaultTravelMode = TravelModeWalking
)

// Assumed speeds in m/s: walking is about 5 km/h, driving 40 km/h.
const (
	walkingSpeed = 1.4
	drivingSpeed = 40 * 1000 / 3600.0
)

// Speed returns the assumed travel speed in meters per second.
func (m TravelMode) Speed() float64 {
	switch m {
	case TravelModeDriving:
		return drivingSpeed
	default:
		return walkingSpeed
	}
}

// ParseTravelMode accepts "walking"/"driving" (case-insensitive); empty yields the default.
func ParseTravelMode(s string) (TravelMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultTravelMode, nil
	case string(TravelModeWalking):
		return TravelModeWalking, nil
	case string(TravelModeDriving):
		return TravelModeDriving, nil
	default:
		return "", fmt.Errorf("unknown travel mode %q", s)
	}
}

// Route sources.
const (
	RouteSourceSynthesized = "synthesized"
	RouteSourceMapbox      = "mapbox"
)

// RouteInfo is a path between two coordinates plus distance/duration estimates.
type RouteInfo struct {
	Distance    float64      `json:"distance"` // meters
	Duration    float64      `json:"duration"` // seconds
	Coordinates []Coordinate `json:"coordinates"`
	Mode        TravelMode   `json:"mode"`
	Source      string       `json:"source"`
}

// Start returns the first coordinate of the path.
func (r RouteInfo) Start() Coordinate {
	if len(r.Coordinates) == 0 {
		return Coordinate{}
	}
	return r.Coordinates[0]
}

// End returns the last coordinate of the path.
func (r RouteInfo) End() Coordinate {
	if len(r.Coordinates) == 0 {
		return Coordinate{}
	}
	return r.Coordinates[len(r.Coordinates)-1]
}

func (r RouteInfo) path() []geospatial.LatLng {
	path := make([]geospatial.LatLng, len(r.Coordinates))
	for i, c := range r.Coordinates {
		path[i] = c.latLng()
	}
	return path
}

// Polyline returns the path as an encoded polyline string.
func (r RouteInfo) Polyline() string {
	return geospatial.EncodePolyline(r.path())
}

// GeoJSON returns the path as a LineString feature carrying distance, duration and mode.
func (r RouteInfo) GeoJSON() *geojson.Feature {
	return geospatial.LineStringFeature(r.path(), map[string]any{
		"distance": r.Distance,
		"duration": r.Duration,
		"mode":     string(r.Mode),
		"source":   r.Source,
	})
}

// NearbyPlace is a place annotated with its distance from a query point.
type NearbyPlace struct {
	Place
	Distance float64 `json:"distance"` // meters
}

// Narration is the text spoken to a visitor on arrival at a place.
type Narration struct {
	DeviceID  string    `json:"device_id"`
	PlaceID   string    `json:"place_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
