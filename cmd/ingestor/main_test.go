package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/core/domain"
)

const placesYAML = `places:
  - id: "10"
    name: Catharinakerk
    description: Gothic church on the market square
    category: Historical
    coordinates:
      latitude: 51.4380
      longitude: 5.4790
`

type mockRepo struct {
	UpsertBatchFn func(ctx context.Context, places []domain.Place) error
	ListFn        func(ctx context.Context) ([]domain.Place, error)
}

func (m *mockRepo) Upsert(ctx context.Context, p *domain.Place) error { return nil }
func (m *mockRepo) UpsertBatch(ctx context.Context, places []domain.Place) error {
	return m.UpsertBatchFn(ctx, places)
}
func (m *mockRepo) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	return nil, domain.ErrPlaceNotFound
}
func (m *mockRepo) List(ctx context.Context) ([]domain.Place, error) { return m.ListFn(ctx) }
func (m *mockRepo) FindNearby(ctx context.Context, at domain.Coordinate, radiusMeters float64, limit int) ([]domain.NearbyPlace, error) {
	return nil, nil
}

func TestSelectSources(t *testing.T) {
	sources := []SourceEntry{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	if got := selectSources(sources, nil); len(got) != 3 {
		t.Errorf("no filter: got %d sources, want 3", len(got))
	}
	got := selectSources(sources, []string{"c", " a"})
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("filtered = %+v, want a and c", got)
	}
}

func TestImportManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/places.yaml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, placesYAML)
	}))
	defer srv.Close()

	dir := t.TempDir()
	local := filepath.Join(dir, "local.yaml")
	if err := os.WriteFile(local, []byte(placesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(dir, "manifest.json")
	body := fmt.Sprintf(`{"sources":[{"name":"remote","url":%q},{"name":"local","url":%q}]}`,
		srv.URL+"/places.yaml", local)
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	upserts := make(chan []domain.Place, 2)
	repo := &mockRepo{UpsertBatchFn: func(ctx context.Context, places []domain.Place) error {
		upserts <- places
		return nil
	}}

	if err := importManifest(context.Background(), repo, manifest, nil); err != nil {
		t.Fatalf("importManifest: %v", err)
	}
	close(upserts)
	n := 0
	for places := range upserts {
		n++
		if len(places) != 1 || places[0].ID != "10" {
			t.Errorf("upserted %+v, want place 10", places)
		}
	}
	if n != 2 {
		t.Errorf("upsert batches = %d, want 2", n)
	}
}

func TestImportManifestReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	manifest := filepath.Join(t.TempDir(), "manifest.json")
	body := fmt.Sprintf(`{"sources":[{"name":"remote","url":%q}]}`, srv.URL)
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := &mockRepo{UpsertBatchFn: func(ctx context.Context, places []domain.Place) error {
		t.Error("unexpected upsert")
		return nil
	}}

	err := importManifest(context.Background(), repo, manifest, nil)
	if err == nil || !strings.Contains(err.Error(), "1 of 1") {
		t.Errorf("err = %v, want 1 of 1 sources failed", err)
	}
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetch(&fasthttp.Client{}, srv.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("err = %v, want HTTP 404", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	repo := &mockRepo{ListFn: func(ctx context.Context) ([]domain.Place, error) {
		return registry.Default().Places(), nil
	}}

	var buf bytes.Buffer
	if err := export(context.Background(), repo, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	reg, err := registry.Decode(&buf)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if got, want := len(reg.Places()), len(registry.Default().Places()); got != want {
		t.Errorf("exported %d places, want %d", got, want)
	}
}
