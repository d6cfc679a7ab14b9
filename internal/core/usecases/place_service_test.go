package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

// --- Mock PlaceRepository ---

type mockPlaceRepo struct {
	getByIDFn    func(ctx context.Context, id string) (*domain.Place, error)
	listFn       func(ctx context.Context) ([]domain.Place, error)
	findNearbyFn func(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error)
}

func (m *mockPlaceRepo) Upsert(ctx context.Context, p *domain.Place) error         { return nil }
func (m *mockPlaceRepo) UpsertBatch(ctx context.Context, ps []domain.Place) error { return nil }

func (m *mockPlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPlaceRepo) List(ctx context.Context) ([]domain.Place, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPlaceRepo) FindNearby(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, at, radius, limit)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Tests ---

func nearbyFixture() []domain.NearbyPlace {
	return []domain.NearbyPlace{
		{Place: domain.Place{ID: "3", Name: "Helmond Castle", Category: "castle"}, Distance: 9000},
		{Place: domain.Place{ID: "1", Name: "Nuenen", Category: "village"}, Distance: 6400},
		{Place: domain.Place{ID: "2", Name: "Eindhoven - Philips Museum", Category: "Museum"}, Distance: 300},
	}
}

func TestPlaceService_FindNearby_DefaultsAndOrder(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error) {
			if radius != usecases.DefaultNearbyRadius {
				t.Errorf("expected default radius %f, got %f", usecases.DefaultNearbyRadius, radius)
			}
			if limit != 20 {
				t.Errorf("expected default limit 20, got %d", limit)
			}
			return nearbyFixture(), nil
		},
	}

	svc := usecases.NewPlaceService(repo, nil)
	got, err := svc.FindNearby(context.Background(), eindhoven, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 places, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Distance > got[i].Distance {
			t.Fatalf("results not sorted by distance: %v", got)
		}
	}
}

func TestPlaceService_FindNearby_ClampLimit(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error) {
			if limit != 50 {
				t.Errorf("expected limit clamped to 50, got %d", limit)
			}
			return nil, nil
		},
	}
	svc := usecases.NewPlaceService(repo, nil)
	if _, err := svc.FindNearby(context.Background(), eindhoven, 1000, 999); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlaceService_FindNearby_InvalidCoordinate(t *testing.T) {
	svc := usecases.NewPlaceService(&mockPlaceRepo{}, nil)
	_, err := svc.FindNearby(context.Background(), domain.Coordinate{Latitude: 95}, 0, 0)
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestPlaceService_FindNearby_Cached(t *testing.T) {
	calls := 0
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error) {
			calls++
			return nearbyFixture(), nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewPlaceService(repo, cache)

	for i := 0; i < 3; i++ {
		got, err := svc.FindNearby(context.Background(), eindhoven, 2000, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 || got[0].ID != "2" {
			t.Fatalf("unexpected result %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected repository to be hit once, got %d", calls)
	}
}

func TestPlaceService_FindByCategory(t *testing.T) {
	repo := &mockPlaceRepo{
		findNearbyFn: func(ctx context.Context, at domain.Coordinate, radius float64, limit int) ([]domain.NearbyPlace, error) {
			if radius != usecases.DefaultCategoryRadius {
				t.Errorf("expected default category radius, got %f", radius)
			}
			return nearbyFixture(), nil
		},
	}
	svc := usecases.NewPlaceService(repo, nil)

	got, err := svc.FindByCategory(context.Background(), eindhoven, "museum", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected the museum only, got %v", got)
	}

	if _, err := svc.FindByCategory(context.Background(), eindhoven, " ", 0); err == nil {
		t.Error("expected error for empty category")
	}
}

func TestPlaceService_GetByID_NotFound(t *testing.T) {
	svc := usecases.NewPlaceService(&mockPlaceRepo{}, nil)
	_, err := svc.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPlaceNotFound) {
		t.Fatalf("expected ErrPlaceNotFound, got %v", err)
	}
}

func TestPlaceService_GetByID(t *testing.T) {
	repo := &mockPlaceRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Place, error) {
			return &domain.Place{ID: id, Name: "Nuenen"}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewPlaceService(repo, cache)

	p, err := svc.GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Nuenen" {
		t.Errorf("expected Nuenen, got %s", p.Name)
	}
	if cache.sets != 1 {
		t.Errorf("expected place to be cached, got %d sets", cache.sets)
	}
}
