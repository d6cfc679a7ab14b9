package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/pkg/config"
)

const usage = "usage: migrate <up|down|seed [places.yaml]>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("tourguide-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		err = migrate(ctx, db, cfg.Database.MigrationsDir, false)
	case "down":
		err = migrate(ctx, db, cfg.Database.MigrationsDir, true)
	case "seed":
		path := cfg.Registry.Path
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		err = seed(ctx, db, path)
	default:
		log.Fatalf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// migrationFiles lists the up (or down) scripts of dir in apply order.
func migrationFiles(dir string, down bool) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range all {
		if strings.HasSuffix(f, ".down.sql") == down {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	if down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

func migrate(ctx context.Context, db *postgres.DB, dir string, down bool) error {
	files, err := migrationFiles(dir, down)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations in %s", dir)
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("%d migrations applied", len(files))
	return nil
}

// seed upserts a place file, or the built-in places when path is empty.
func seed(ctx context.Context, db *postgres.DB, path string) error {
	reg, err := registry.Load(path)
	if err != nil {
		return err
	}
	if err := postgres.NewPlaceRepo(db).UpsertBatch(ctx, reg.Places()); err != nil {
		return err
	}
	log.Printf("seeded %d places", len(reg.Places()))
	return nil
}
