package ports

import (
	"context"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// PlaceRegistry is the static, read-only set of places checked by proximity trackers.
type PlaceRegistry interface {
	// Places returns the registry contents in a stable order. Callers must not mutate it.
	Places() []domain.Place
}

// PlaceRepository persists places.
type PlaceRepository interface {
	Upsert(ctx context.Context, place *domain.Place) error
	UpsertBatch(ctx context.Context, places []domain.Place) error
	GetByID(ctx context.Context, id string) (*domain.Place, error)
	List(ctx context.Context) ([]domain.Place, error)
	// FindNearby returns places within radiusMeters of at, closest first.
	// A non-positive limit means no limit.
	FindNearby(ctx context.Context, at domain.Coordinate, radiusMeters float64, limit int) ([]domain.NearbyPlace, error)
}
