package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/metrics"
	"github.com/samirrijal/tourguide/internal/pkg/telemetry"
)

const routeCacheTTL = 600 // seconds

// RouteService answers route requests. It prefers the configured routing backend
// and falls back to synthesis when the backend is absent or fails.
type RouteService struct {
	backend     ports.RoutingBackend
	synthesizer *RouteSynthesizer
	places      ports.PlaceRepository
	cache       ports.CacheService
	log         *slog.Logger
}

// NewRouteService creates a new RouteService. backend and cache may be nil.
func NewRouteService(backend ports.RoutingBackend, synthesizer *RouteSynthesizer, places ports.PlaceRepository, cache ports.CacheService) *RouteService {
	if synthesizer == nil {
		synthesizer = NewRouteSynthesizer()
	}
	return &RouteService{
		backend:     backend,
		synthesizer: synthesizer,
		places:      places,
		cache:       cache,
		log:         slog.Default().With("component", "routes"),
	}
}

// GetRoute returns a route from start to end. An empty mode means walking.
func (s *RouteService) GetRoute(ctx context.Context, start, end domain.Coordinate, mode domain.TravelMode) (*domain.RouteInfo, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if mode == "" {
		mode = domain.DefaultTravelMode
	}

	cacheKey := routeCacheKey(start, end, mode)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var route domain.RouteInfo
			if err := json.Unmarshal(data, &route); err == nil && len(route.Coordinates) >= 2 {
				metrics.CacheHits.WithLabelValues("route").Inc()
				pinEndpoints(&route, start, end)
				return &route, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	route := s.fromBackend(ctx, start, end, mode)
	if route == nil {
		synth := s.synthesizer.Synthesize(start, end, mode)
		route = &synth
	}
	pinEndpoints(route, start, end)
	metrics.RoutesServed.WithLabelValues(route.Source).Inc()

	if s.cache != nil {
		if data, err := json.Marshal(route); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, routeCacheTTL)
		}
	}

	return route, nil
}

// routeCacheKey keys on the exact coordinates so a hit always describes the
// requested endpoints.
func routeCacheKey(start, end domain.Coordinate, mode domain.TravelMode) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return "routes:" + f(start.Latitude) + ":" + f(start.Longitude) + ":" +
		f(end.Latitude) + ":" + f(end.Longitude) + ":" + string(mode)
}

// pinEndpoints makes the path begin at start and finish at end. Backends snap
// endpoints to the road network.
func pinEndpoints(route *domain.RouteInfo, start, end domain.Coordinate) {
	route.Coordinates[0] = start
	route.Coordinates[len(route.Coordinates)-1] = end
}

// fromBackend returns nil when there is no usable backend answer.
func (s *RouteService) fromBackend(ctx context.Context, start, end domain.Coordinate, mode domain.TravelMode) *domain.RouteInfo {
	if s.backend == nil {
		return nil
	}

	ctx, span := otel.Tracer("tourguide/routing").Start(ctx, telemetry.SpanRouteDirections)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrBackend, s.backend.Name()),
		attribute.String(telemetry.AttrMode, string(mode)),
	)

	route, err := s.backend.Directions(ctx, start, end, mode)
	if err == nil && (route == nil || len(route.Coordinates) < 2) {
		err = domain.ErrNoRoute
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RoutingBackendErrors.WithLabelValues(s.backend.Name()).Inc()
		s.log.Warn("routing backend failed, synthesizing route",
			"backend", s.backend.Name(), "error", err)
		return nil
	}

	if route.Source == "" {
		route.Source = s.backend.Name()
	}
	if route.Mode == "" {
		route.Mode = mode
	}
	return route
}

// RouteToPlace returns a route from from to the place with the given id.
func (s *RouteService) RouteToPlace(ctx context.Context, from domain.Coordinate, placeID string, mode domain.TravelMode) (*domain.RouteInfo, *domain.Place, error) {
	if s.places == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrPlaceNotFound, placeID)
	}
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return nil, nil, err
	}
	if place == nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrPlaceNotFound, placeID)
	}

	route, err := s.GetRoute(ctx, from, place.Coordinates, mode)
	if err != nil {
		return nil, nil, err
	}
	return route, place, nil
}
