package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

const upsertPlaceSQL = `
	INSERT INTO places (id, name, description, category, address, image_url, facts, location, radius)
	VALUES ($1, $2, $3, $4, $5, $6, $7, ST_SetSRID(ST_MakePoint($8, $9), 4326)::geography, $10)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, description = EXCLUDED.description,
	    category = EXCLUDED.category, address = EXCLUDED.address,
	    image_url = EXCLUDED.image_url, facts = EXCLUDED.facts,
	    location = EXCLUDED.location, radius = EXCLUDED.radius,
	    updated_at = now()
`

const placeColumns = `
	id, name, COALESCE(description, ''), COALESCE(category, ''),
	COALESCE(address, ''), COALESCE(image_url, ''), COALESCE(facts, '{}'),
	ST_Y(location::geometry) AS lat, ST_X(location::geometry) AS lon, radius
`

// PlaceRepo implements ports.PlaceRepository with pgx and PostGIS.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

func placeArgs(p *domain.Place) []any {
	return []any{
		p.ID, p.Name, p.Description, p.Category, p.Address, p.ImageURL, p.Facts,
		p.Coordinates.Longitude, p.Coordinates.Latitude, p.EffectiveRadius(),
	}
}

// Upsert inserts or updates a single place.
func (r *PlaceRepo) Upsert(ctx context.Context, p *domain.Place) error {
	_, err := r.db.Pool.Exec(ctx, upsertPlaceSQL, placeArgs(p)...)
	return err
}

// UpsertBatch inserts many places using pgx.Batch.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.Place) error {
	batch := &pgx.Batch{}
	for i := range places {
		batch.Queue(upsertPlaceSQL, placeArgs(&places[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, p := range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert place %s: %w", p.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(row scanner, extra ...any) (domain.Place, error) {
	var p domain.Place
	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Address, &p.ImageURL, &p.Facts,
		&p.Coordinates.Latitude, &p.Coordinates.Longitude, &p.Radius,
	}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

// GetByID returns a place or domain.ErrPlaceNotFound.
func (r *PlaceRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id)
	p, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all places ordered by id, the registry order.
func (r *PlaceRepo) List(ctx context.Context) ([]domain.Place, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+placeColumns+` FROM places ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

// prefilterSlack widens the spheroidal ST_DWithin prefilter so no place inside
// the spherical radius is lost; the two earth models differ by under 0.6%.
const prefilterSlack = 1.01

// FindNearby returns places within radiusMeters of at, closest first. PostGIS
// prefilters candidates; distances and the final cut use the same haversine as
// the proximity tracker. A non-positive limit returns every match.
func (r *PlaceRepo) FindNearby(ctx context.Context, at domain.Coordinate, radiusMeters float64, limit int) ([]domain.NearbyPlace, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+placeColumns+`
		FROM places
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
	`, at.Longitude, at.Latitude, radiusMeters*prefilterSlack+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return withinRadius(at, candidates, radiusMeters, limit), nil
}

// withinRadius keeps the places at most radiusMeters from at, sorted by
// distance then id, cut to limit when limit > 0.
func withinRadius(at domain.Coordinate, places []domain.Place, radiusMeters float64, limit int) []domain.NearbyPlace {
	out := make([]domain.NearbyPlace, 0, len(places))
	for _, p := range places {
		if d := at.DistanceTo(p.Coordinates); d <= radiusMeters {
			out = append(out, domain.NearbyPlace{Place: p, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
