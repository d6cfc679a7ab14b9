package usecases

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/pkg/geospatial"
)

const (
	defaultWaypointSpacing = 500.0 // meters of straight line per path point
	defaultJitter          = 0.001 // degrees, full span

	minRouteFactor  = 1.2
	routeFactorSpan = 0.3
)

// SynthesizerOption configures a RouteSynthesizer.
type SynthesizerOption func(*RouteSynthesizer)

// WithRand sets the random source used for jitter and the distance factor.
// Tests pass a seeded source to get reproducible paths.
func WithRand(r *rand.Rand) SynthesizerOption {
	return func(s *RouteSynthesizer) { s.rng = r }
}

// WithDefaultMode sets the mode used when Synthesize is called without one.
func WithDefaultMode(m domain.TravelMode) SynthesizerOption {
	return func(s *RouteSynthesizer) { s.defaultMode = m }
}

// WithJitter sets the full span in degrees of the random offset applied to interior points.
// Zero produces a straight line.
func WithJitter(deg float64) SynthesizerOption {
	return func(s *RouteSynthesizer) { s.jitter = deg }
}

// WithSpacing sets the straight-line distance per generated path point.
func WithSpacing(meters float64) SynthesizerOption {
	return func(s *RouteSynthesizer) {
		if meters > 0 {
			s.spacing = meters
		}
	}
}

// RouteSynthesizer builds approximate routes when no routing backend is available.
// The path is a jittered straight line and must not be used for navigation.
type RouteSynthesizer struct {
	defaultMode domain.TravelMode
	jitter      float64
	spacing     float64

	mu  sync.Mutex // *rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewRouteSynthesizer creates a synthesizer. Without WithRand it draws from the
// process-wide source.
func NewRouteSynthesizer(opts ...SynthesizerOption) *RouteSynthesizer {
	s := &RouteSynthesizer{
		defaultMode: domain.DefaultTravelMode,
		jitter:      defaultJitter,
		spacing:     defaultWaypointSpacing,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize returns a path from start to end with estimated distance and duration.
// The path begins and ends exactly at start and end, Distance is at least the
// great-circle distance, and Duration is positive whenever Distance is.
func (s *RouteSynthesizer) Synthesize(start, end domain.Coordinate, mode domain.TravelMode) domain.RouteInfo {
	if mode == "" {
		mode = s.defaultMode
	}

	direct := start.DistanceTo(end)
	n := int(math.Floor(direct / s.spacing))
	if n < 2 {
		n = 2
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := make([]domain.Coordinate, 0, n)
	path = append(path, start)
	for i := 1; i < n-1; i++ {
		lat, lon := geospatial.Interpolate(start.Latitude, start.Longitude,
			end.Latitude, end.Longitude, float64(i)/float64(n-1))
		path = append(path, domain.Coordinate{
			Latitude:  lat + (s.random()-0.5)*s.jitter,
			Longitude: lon + (s.random()-0.5)*s.jitter,
		})
	}
	path = append(path, end)

	distance := direct * (minRouteFactor + s.random()*routeFactorSpan)

	return domain.RouteInfo{
		Distance:    distance,
		Duration:    distance / mode.Speed(),
		Coordinates: path,
		Mode:        mode,
		Source:      domain.RouteSourceSynthesized,
	}
}

func (s *RouteSynthesizer) random() float64 {
	if s.rng != nil {
		return s.rng.Float64()
	}
	return rand.Float64()
}
