package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/tourguide/internal/adapters/http"
	"github.com/samirrijal/tourguide/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/tourguide/internal/adapters/nats"
	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/adapters/valkey"
	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/core/usecases"
	"github.com/samirrijal/tourguide/internal/pkg/config"
	"github.com/samirrijal/tourguide/internal/pkg/logging"
	"github.com/samirrijal/tourguide/internal/pkg/telemetry"
	"github.com/samirrijal/tourguide/internal/workflows"
)

const service = "tourguide-api"

func main() {
	cfg, err := config.Load(service)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	deps := &http.Dependencies{SpecPath: "api/openapi.yaml"}

	// Places: a YAML registry, or PostGIS with the registry built from its rows
	var (
		reg   *registry.Registry
		repo  ports.PlaceRepository
		cache ports.CacheService
	)
	switch cfg.Registry.Source {
	case config.PlaceSourcePostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)

		placeRepo := postgres.NewPlaceRepo(db)
		places, err := placeRepo.List(ctx)
		if err != nil {
			log.Fatalf("load places: %v", err)
		}
		if reg, err = registry.New(places); err != nil {
			log.Fatalf("place registry: %v", err)
		}
		repo = placeRepo
		deps.DB = db
	default:
		if reg, err = registry.Load(cfg.Registry.Path); err != nil {
			log.Fatalf("place registry: %v", err)
		}
		repo = reg
	}
	slog.Info("place registry loaded", "source", cfg.Registry.Source, "places", len(reg.Places()))

	// Cache
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, "tourguide")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
			deps.Cache = c
		}
	}

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		nc, err := natsadapter.Connect(cfg.NATS.URL, service)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else if pub, err := natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("nats jetstream unavailable", "error", err)
			nc.Close()
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = nc
		}
	}

	// Narration goes through cmd/narrator when events reach NATS; without
	// NATS the API starts workflows itself.
	var narrator ports.NarrationStarter
	if cfg.Temporal.Enabled && publisher == nil {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal unavailable, narration disabled", "error", err)
		} else {
			defer tc.Close()
			narrator = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Routing
	var backend ports.RoutingBackend
	if cfg.Routing.Mapbox.Token != "" {
		backend = mapbox.New(cfg.Routing.Mapbox.BaseURL, cfg.Routing.Mapbox.Token, cfg.Routing.Timeout)
	}
	mode, _ := domain.ParseTravelMode(cfg.Routing.DefaultMode) // validated by config
	synth := usecases.NewRouteSynthesizer(
		usecases.WithDefaultMode(mode),
		usecases.WithJitter(cfg.Routing.Jitter),
		usecases.WithSpacing(cfg.Routing.Spacing),
	)

	// Use cases
	deps.Places = usecases.NewPlaceService(repo, cache)
	deps.Routes = usecases.NewRouteService(backend, synth, repo, cache)
	deps.Tracking = usecases.NewTrackingService(reg,
		usecases.NewTransitionRelay(publisher, narrator),
		publisher,
		usecases.WithThrottle(cfg.Tracking.MinInterval, cfg.Tracking.MinDistance),
		usecases.WithResetOnStart(cfg.Tracking.ResetOnStart),
		usecases.WithInitialFixTimeout(cfg.Tracking.InitialFixTimeout),
	)
	defer deps.Tracking.Close()
	go evictIdle(ctx, deps.Tracking, cfg.Tracking.IdleTTL)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // fixes are tiny
		AppName:      "Tourguide API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Traceparent",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// evictIdle drops trackers of devices that stopped sending fixes.
func evictIdle(ctx context.Context, tracking *usecases.TrackingService, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracking.EvictIdle(ttl)
		}
	}
}
