package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/metrics"
)

const (
	DefaultNearbyRadius   = 5000.0  // meters
	DefaultCategoryRadius = 10000.0 // meters

	maxNearbyLimit     = 50
	defaultNearbyLimit = 20
)

// PlaceService handles place lookups.
type PlaceService struct {
	places ports.PlaceRepository
	cache  ports.CacheService
}

// NewPlaceService creates a new PlaceService. cache may be nil.
func NewPlaceService(places ports.PlaceRepository, cache ports.CacheService) *PlaceService {
	return &PlaceService{places: places, cache: cache}
}

// List returns every known place.
func (s *PlaceService) List(ctx context.Context) ([]domain.Place, error) {
	return s.places.List(ctx)
}

// GetByID returns a single place or domain.ErrPlaceNotFound.
func (s *PlaceService) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	cacheKey := "places:id:" + id
	var cached domain.Place
	if s.cacheGet(ctx, "place_by_id", cacheKey, &cached) {
		return &cached, nil
	}

	place, err := s.places.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if place == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaceNotFound, id)
	}

	s.cacheSet(ctx, cacheKey, place, 600) // 10 min for single place
	return place, nil
}

// FindNearby returns places within radiusMeters of at, closest first.
// A non-positive radius means DefaultNearbyRadius.
func (s *PlaceService) FindNearby(ctx context.Context, at domain.Coordinate, radiusMeters float64, limit int) ([]domain.NearbyPlace, error) {
	if err := at.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultNearbyRadius
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if limit > maxNearbyLimit {
		limit = maxNearbyLimit
	}

	cacheKey := fmt.Sprintf("places:nearby:%.4f:%.4f:%.0f:%d", at.Latitude, at.Longitude, radiusMeters, limit)
	var cached []domain.NearbyPlace
	if s.cacheGet(ctx, "places_nearby", cacheKey, &cached) {
		return cached, nil
	}

	nearby, err := s.places.FindNearby(ctx, at, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	sortByDistance(nearby)

	// Places change rarely; 5 minutes
	s.cacheSet(ctx, cacheKey, nearby, 300)
	return nearby, nil
}

// FindByCategory returns places of the given category within radiusMeters of at,
// closest first. Category matching ignores case. A non-positive radius means
// DefaultCategoryRadius.
func (s *PlaceService) FindByCategory(ctx context.Context, at domain.Coordinate, category string, radiusMeters float64) ([]domain.NearbyPlace, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.New("category must not be empty")
	}
	if err := at.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultCategoryRadius
	}

	all, err := s.places.FindNearby(ctx, at, radiusMeters, 0)
	if err != nil {
		return nil, err
	}

	out := make([]domain.NearbyPlace, 0, len(all))
	for _, p := range all {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	sortByDistance(out)
	return out, nil
}

func sortByDistance(ps []domain.NearbyPlace) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Distance < ps[j].Distance })
}

func (s *PlaceService) cacheGet(ctx context.Context, op, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil && json.Unmarshal(data, v) == nil {
		metrics.CacheHits.WithLabelValues(op).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return false
}

func (s *PlaceService) cacheSet(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}
