//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	handler "github.com/samirrijal/tourguide/internal/adapters/http"
	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
	"github.com/samirrijal/tourguide/internal/pkg/config"
)

// setupTestDB connects to the database from config. The schema must already be
// migrated (go run ./cmd/migrate up).
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("tourguide-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// setupTestDeps serves places from PostGIS with no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) (*handler.Dependencies, *postgres.PlaceRepo) {
	t.Helper()
	repo := postgres.NewPlaceRepo(db)
	return &handler.Dependencies{
		Places: usecases.NewPlaceService(repo, nil),
		Routes: usecases.NewRouteService(nil, nil, repo, nil),
		DB:     db,
	}, repo
}

// seedPlaces inserts two places a few hundred meters apart with unique ids and
// removes them when the test ends.
func seedPlaces(t *testing.T, db *postgres.DB, repo *postgres.PlaceRepo) (near, far domain.Place) {
	t.Helper()
	suffix := time.Now().Format("20060102150405.000")
	near = domain.Place{
		ID: "it-near-" + suffix, Name: "Catharinakerk", Category: "church",
		Coordinates: domain.Coordinate{Latitude: 61.4380, Longitude: 5.4790}, Radius: 200,
	}
	far = domain.Place{
		ID: "it-far-" + suffix, Name: "Stadhuis", Category: "historical",
		Coordinates: domain.Coordinate{Latitude: 61.4410, Longitude: 5.4790}, Radius: 200,
	}
	if err := repo.UpsertBatch(context.Background(), []domain.Place{near, far}); err != nil {
		t.Fatalf("seed places: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM places WHERE id = ANY($1)`, []string{near.ID, far.ID})
	})
	return near, far
}

// TestGetPlace_Integration looks a seeded place up through the API.
func TestGetPlace_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	deps, repo := setupTestDeps(t, db)
	near, _ := seedPlaces(t, db, repo)
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/places/"+near.ID, nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got domain.Place
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Name != near.Name || got.Coordinates != near.Coordinates {
		t.Errorf("got %+v; want %+v", got, near)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/places/it-missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// TestNearbyPlaces_Integration runs the ST_DWithin query against PostGIS.
func TestNearbyPlaces_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	deps, repo := setupTestDeps(t, db)
	near, far := seedPlaces(t, db, repo)
	app := setupApp(deps)

	// far is about 333 m north of near.
	req := httptest.NewRequest("GET", "/v1/places/nearby?lat=61.4380&lon=5.4790&radius=1000", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var places []domain.NearbyPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	index := map[string]int{}
	for i, p := range places {
		index[p.ID] = i
	}
	ni, okNear := index[near.ID]
	fi, okFar := index[far.ID]
	if !okNear || !okFar {
		t.Fatalf("expected both seeded places, got %d places", len(places))
	}
	if ni > fi {
		t.Error("expected the nearer place first")
	}
	if d := places[fi].Distance; d < 300 || d > 370 {
		t.Errorf("expected about 333 m to the far place, got %f", d)
	}

	req = httptest.NewRequest("GET", "/v1/places/nearby?lat=61.4380&lon=5.4790&radius=100", nil)
	resp, _ = app.Test(req, -1)
	places = nil
	json.NewDecoder(resp.Body).Decode(&places)
	for _, p := range places {
		if p.ID == far.ID {
			t.Error("far place returned outside the radius")
		}
	}
}

// TestReady_Integration reports the database as reachable.
func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	deps, _ := setupTestDeps(t, db)
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
