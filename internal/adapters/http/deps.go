package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tourguide/internal/adapters/postgres"
	"github.com/samirrijal/tourguide/internal/adapters/valkey"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Infrastructure fields are nil when the component is disabled.
type Dependencies struct {
	Places   *usecases.PlaceService
	Routes   *usecases.RouteService
	Tracking *usecases.TrackingService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
	// SpecPath is the OpenAPI document served at /docs/openapi.yaml.
	SpecPath string
}
