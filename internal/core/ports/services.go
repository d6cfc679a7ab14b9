package ports

import (
	"context"
	"time"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// SubscribeOptions throttles a fix stream at the source.
type SubscribeOptions struct {
	MinInterval time.Duration
	MinDistance float64 // meters
}

// Subscription is a live fix stream handle.
type Subscription interface {
	Unsubscribe() error
}

// LocationProvider produces device position fixes.
type LocationProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
	// CurrentFix blocks until a fix is available or ctx is done. It fails with
	// domain.ErrPermissionDenied or domain.ErrSignalUnavailable.
	CurrentFix(ctx context.Context) (domain.PositionFix, error)
	Subscribe(ctx context.Context, opts SubscribeOptions, onFix func(domain.PositionFix)) (Subscription, error)
}

// RoutingBackend computes real routes, e.g. through a directions API.
type RoutingBackend interface {
	Name() string
	Directions(ctx context.Context, start, end domain.Coordinate, mode domain.TravelMode) (*domain.RouteInfo, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event *domain.TransitionEvent) error
	PublishFix(ctx context.Context, fix *domain.PositionFix) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// NarrationStarter kicks off narration for a place the user just entered.
type NarrationStarter interface {
	StartNarration(ctx context.Context, event *domain.TransitionEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, userID, title, body string) error
}
