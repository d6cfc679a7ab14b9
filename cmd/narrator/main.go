package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	natsadapter "github.com/samirrijal/tourguide/internal/adapters/nats"
	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/registry"
	"github.com/samirrijal/tourguide/internal/adapters/valkey"
	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/config"
	"github.com/samirrijal/tourguide/internal/pkg/logging"
	"github.com/samirrijal/tourguide/internal/workflows"
)

const (
	service = "tourguide-narrator"
	durable = "narrator"
)

// narrator runs the narration worker and turns enter events from NATS into
// narration workflows.
func main() {
	cfg, err := config.Load(service)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var places ports.PlaceRepository
	if cfg.Registry.Source == config.PlaceSourcePostgres {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		places = postgres.NewPlaceRepo(db)
	} else {
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			log.Fatalf("place registry: %v", err)
		}
		places = reg
	}

	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, "tourguide")
		if err != nil {
			slog.Warn("valkey unavailable, narrations are not recorded", "error", err)
		} else {
			defer c.Close()
			cache = c
		}
	}

	nc, err := natsadapter.Connect(cfg.NATS.URL, service)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflowWithOptions(workflows.NarrationWorkflow, workflow.RegisterOptions{
		Name: workflows.NarrationWorkflowName,
	})
	w.RegisterActivity(&workflows.NarrationActivities{
		Places:   places,
		Notifier: natsadapter.NewNotifier(nc),
		Cache:    cache,
		Now:      time.Now,
	})

	sub, err := natsadapter.NewSubscriber(nc)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	starter := workflows.NewStarter(c, cfg.Temporal.TaskQueue)
	err = sub.SubscribeEnters(ctx, durable, func(ctx context.Context, ev *domain.TransitionEvent) error {
		startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := starter.StartNarration(startCtx, ev); err != nil {
			slog.Error("start narration", "device", ev.Fix.DeviceID, "place", ev.Place.ID, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe enters: %v", err)
	}

	slog.Info("narrator worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
