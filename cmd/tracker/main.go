package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	natsadapter "github.com/samirrijal/tourguide/internal/adapters/nats"
	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/core/usecases"
	"github.com/samirrijal/tourguide/internal/pkg/config"
	"github.com/samirrijal/tourguide/internal/pkg/logging"
	"github.com/samirrijal/tourguide/internal/pkg/telemetry"
	"github.com/samirrijal/tourguide/internal/workflows"
)

const service = "tourguide-tracker"

// tracker watches the configured devices' fix streams on NATS and publishes
// their proximity transitions.
func main() {
	cfg, err := config.Load(service)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, service)

	if !cfg.NATS.Enabled {
		log.Fatal("tracker requires nats.enabled")
	}
	if len(cfg.Tracking.Devices) == 0 {
		log.Fatal("no devices configured (tracking.devices)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr, cfg.Telemetry.Enabled)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	reg, err := loadRegistry(ctx, cfg)
	if err != nil {
		log.Fatalf("place registry: %v", err)
	}

	nc, err := natsadapter.Connect(cfg.NATS.URL, service)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	publisher, err := natsadapter.NewPublisher(nc)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer publisher.Close()

	var narrator ports.NarrationStarter
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			slog.Warn("temporal unavailable, narration left to the narrator", "error", err)
		} else {
			defer tc.Close()
			narrator = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
		}
	}

	tracking := usecases.NewTrackingService(reg,
		usecases.NewTransitionRelay(publisher, narrator),
		publisher,
		usecases.WithThrottle(cfg.Tracking.MinInterval, cfg.Tracking.MinDistance),
		usecases.WithResetOnStart(cfg.Tracking.ResetOnStart),
		usecases.WithInitialFixTimeout(cfg.Tracking.InitialFixTimeout),
		usecases.WithLogger(logger),
	)
	defer tracking.Close()

	watching := 0
	for _, device := range cfg.Tracking.Devices {
		provider, err := natsadapter.NewFixProvider(nc, device)
		if err != nil {
			slog.Error("fix provider", "device", device, "error", err)
			continue
		}
		if err := tracking.Watch(ctx, device, provider); err != nil {
			// No initial fix in time; the device is skipped until restart.
			slog.Warn("watch failed", "device", device, "error", err)
			continue
		}
		watching++
	}
	if watching == 0 {
		log.Fatal("no device could be watched")
	}
	slog.Info("tracker started", "devices", watching, "places", len(reg.Places()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down tracker", "signal", sig.String())
}

func loadRegistry(ctx context.Context, cfg *config.Config) (*registry.Registry, error) {
	if cfg.Registry.Source != config.PlaceSourcePostgres {
		return registry.Load(cfg.Registry.Path)
	}
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := postgres.New(loadCtx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	places, err := postgres.NewPlaceRepo(db).List(loadCtx)
	if err != nil {
		return nil, err
	}
	return registry.New(places)
}
