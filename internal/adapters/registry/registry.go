// Package registry serves the static place registry from memory, loaded from
// YAML or the built-in defaults.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// ErrReadOnly is returned by the write methods; the registry never changes after load.
var ErrReadOnly = errors.New("place registry is read-only")

type file struct {
	Places []domain.Place `yaml:"places"`
}

// Registry implements ports.PlaceRegistry and ports.PlaceRepository.
type Registry struct {
	places []domain.Place
	byID   map[string]int
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := New(defaultPlaces())
	if err != nil {
		panic(err) // built-in data is always valid
	}
	return r
}

// New builds a registry, rejecting empty or duplicate ids, invalid coordinates
// and negative radii. A zero radius means domain.DefaultPlaceRadius.
func New(places []domain.Place) (*Registry, error) {
	r := &Registry{
		places: make([]domain.Place, 0, len(places)),
		byID:   make(map[string]int, len(places)),
	}
	for i, p := range places {
		if p.ID == "" {
			return nil, fmt.Errorf("place %d (%q): empty id", i, p.Name)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("place %s: duplicate id", p.ID)
		}
		if err := p.Coordinates.Validate(); err != nil {
			return nil, fmt.Errorf("place %s: %w", p.ID, err)
		}
		if p.Radius < 0 {
			return nil, fmt.Errorf("place %s: negative radius %v", p.ID, p.Radius)
		}
		r.byID[p.ID] = len(r.places)
		r.places = append(r.places, p)
	}
	return r, nil
}

// Decode reads a YAML document with a top-level "places" list.
func Decode(rd io.Reader) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}
	return New(f.Places)
}

// Load reads a registry from path, or returns Default when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open places: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Encode writes places as a registry YAML document.
func Encode(w io.Writer, places []domain.Place) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file{Places: places}); err != nil {
		return err
	}
	return enc.Close()
}

// Places returns the places in file order.
func (r *Registry) Places() []domain.Place { return r.places }

func (r *Registry) Upsert(ctx context.Context, place *domain.Place) error { return ErrReadOnly }

func (r *Registry) UpsertBatch(ctx context.Context, places []domain.Place) error { return ErrReadOnly }

// GetByID returns the place or domain.ErrPlaceNotFound.
func (r *Registry) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaceNotFound, id)
	}
	p := r.places[i]
	return &p, nil
}

// List returns a copy of all places.
func (r *Registry) List(ctx context.Context) ([]domain.Place, error) {
	out := make([]domain.Place, len(r.places))
	copy(out, r.places)
	return out, nil
}

// FindNearby scans every place; the registry is small.
func (r *Registry) FindNearby(ctx context.Context, at domain.Coordinate, radiusMeters float64, limit int) ([]domain.NearbyPlace, error) {
	var out []domain.NearbyPlace
	for _, p := range r.places {
		if d := at.DistanceTo(p.Coordinates); d <= radiusMeters {
			out = append(out, domain.NearbyPlace{Place: p, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
