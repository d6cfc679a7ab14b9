package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists place files to import. Each source is a local path or an
// http(s) URL serving a places YAML document.
type Manifest struct {
	Sources []SourceEntry `json:"sources"`
}

type SourceEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

const usage = "usage: ingestor import [manifest.json] [name,...] | ingestor export [places.yaml]"

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("tourguide-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewPlaceRepo(db)

	switch os.Args[1] {
	case "import":
		manifestPath := "manifest.json"
		if len(os.Args) > 2 {
			manifestPath = os.Args[2]
		}
		var filter []string
		if len(os.Args) > 3 {
			filter = strings.Split(os.Args[3], ",")
		}
		err = importManifest(ctx, repo, manifestPath, filter)
	case "export":
		out := io.Writer(os.Stdout)
		if len(os.Args) > 2 {
			fh, ferr := os.Create(os.Args[2])
			if ferr != nil {
				log.Fatalf("create %s: %v", os.Args[2], ferr)
			}
			defer fh.Close()
			out = fh
		}
		err = export(ctx, repo, out)
	default:
		log.Fatalf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// selectSources keeps the sources named in filter; an empty filter keeps all.
func selectSources(sources []SourceEntry, filter []string) []SourceEntry {
	if len(filter) == 0 {
		return sources
	}
	keep := map[string]bool{}
	for _, name := range filter {
		keep[strings.TrimSpace(name)] = true
	}
	var out []SourceEntry
	for _, s := range sources {
		if keep[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func importManifest(ctx context.Context, repo ports.PlaceRepository, path string, filter []string) error {
	manifest, err := readManifest(path)
	if err != nil {
		return err
	}
	sources := selectSources(manifest.Sources, filter)
	log.Printf("Tourguide place ingestor: %d sources from %s", len(sources), path)

	client := &fasthttp.Client{
		Name:        "tourguide-ingestor",
		ReadTimeout: 60 * time.Second,
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, 4) // max 4 concurrent sources

	for _, src := range sources {
		wg.Add(1)
		go func(s SourceEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestSource(ctx, repo, client, s); err != nil {
				log.Printf("ERROR [%s]: %v", s.Name, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(src)
	}

	wg.Wait()
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	log.Println("ingestion complete")
	return nil
}

// ---------------------------------------------------------------------------
// Per-source ingestion
// ---------------------------------------------------------------------------

func ingestSource(ctx context.Context, repo ports.PlaceRepository, client *fasthttp.Client, src SourceEntry) error {
	data, err := fetch(client, src.URL)
	if err != nil {
		return err
	}
	reg, err := registry.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := repo.UpsertBatch(ctx, reg.Places()); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	log.Printf("[%s] %d places", src.Name, len(reg.Places()))
	return nil
}

func fetch(client *fasthttp.Client, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(url)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := client.Do(req, resp); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode(), url)
	}
	return append([]byte(nil), resp.Body()...), nil
}

// export writes every stored place as a places YAML document.
func export(ctx context.Context, repo ports.PlaceRepository, w io.Writer) error {
	places, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list places: %w", err)
	}
	return registry.Encode(w, places)
}
