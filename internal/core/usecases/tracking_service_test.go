package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu          sync.Mutex
	transitions []domain.TransitionEvent
	fixes       []domain.PositionFix
	err         error
}

func (m *mockPublisher) PublishTransition(ctx context.Context, ev *domain.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, *ev)
	return m.err
}

func (m *mockPublisher) PublishFix(ctx context.Context, fix *domain.PositionFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes = append(m.fixes, *fix)
	return m.err
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return m.err }

// --- Mock NarrationStarter ---

type mockNarrator struct {
	mu     sync.Mutex
	places []string
}

func (m *mockNarrator) StartNarration(ctx context.Context, ev *domain.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.places = append(m.places, ev.Place.ID)
	return nil
}

// --- Tests ---

func deviceFix(device string, c domain.Coordinate) domain.PositionFix {
	return domain.PositionFix{DeviceID: device, Coordinates: c}
}

func TestTrackingService_IsolatesDevices(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	ctx := context.Background()

	events, err := svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != domain.TransitionEnter {
		t.Fatalf("expected enter for alice, got %v", events)
	}

	events, err = svc.Ingest(ctx, deviceFix("bob", placeA.Coordinates))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("bob must get his own enter, got %v", events)
	}

	events, _ = svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	if len(events) != 0 {
		t.Fatalf("expected no repeat enter for alice, got %v", events)
	}
	if svc.Sessions() != 2 {
		t.Errorf("expected 2 sessions, got %d", svc.Sessions())
	}
	if ids := svc.Nearby("alice"); len(ids) != 1 || ids[0] != placeA.ID {
		t.Errorf("unexpected nearby for alice: %v", ids)
	}
	if ids := svc.Nearby("carol"); len(ids) != 0 {
		t.Errorf("unknown device must have no nearby places, got %v", ids)
	}
}

func TestTrackingService_Validation(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)

	if _, err := svc.Ingest(context.Background(), deviceFix("", placeA.Coordinates)); !errors.Is(err, usecases.ErrMissingDevice) {
		t.Errorf("expected ErrMissingDevice, got %v", err)
	}
	bad := deviceFix("alice", domain.Coordinate{Latitude: 100, Longitude: 0})
	if _, err := svc.Ingest(context.Background(), bad); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
	if svc.Sessions() != 0 {
		t.Errorf("rejected fixes must not create sessions, got %d", svc.Sessions())
	}
}

func TestTrackingService_ForgetReArmsEnter(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	ctx := context.Background()

	_, _ = svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	if !svc.Forget("alice") {
		t.Fatal("expected alice to be forgotten")
	}
	if svc.Forget("alice") {
		t.Fatal("second forget must report false")
	}

	events, _ := svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	if len(events) != 1 || events[0].Kind != domain.TransitionEnter {
		t.Fatalf("expected a fresh enter after forget, got %v", events)
	}
}

func TestTrackingService_EvictIdle(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	_, _ = svc.Ingest(context.Background(), deviceFix("alice", placeA.Coordinates))

	if n := svc.EvictIdle(time.Hour); n != 0 {
		t.Fatalf("expected no eviction within ttl, got %d", n)
	}
	if n := svc.EvictIdle(-time.Second); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if svc.Sessions() != 0 {
		t.Errorf("expected no sessions after eviction, got %d", svc.Sessions())
	}
}

func TestTrackingService_Watch(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	p := &mockProvider{}

	if err := svc.Watch(context.Background(), "alice", p); err != nil {
		t.Fatalf("watch: %v", err)
	}
	p.emit(deviceFix("alice", placeA.Coordinates))
	if ids := svc.Nearby("alice"); len(ids) != 1 {
		t.Fatalf("expected streamed fix to mark nearby, got %v", ids)
	}
	if n := svc.EvictIdle(-time.Second); n != 0 {
		t.Fatalf("streaming trackers must not be evicted, got %d", n)
	}
	svc.Close()
	if p.sub.canceled != 1 {
		t.Errorf("expected close to unsubscribe, got %d", p.sub.canceled)
	}
}

func TestTrackingService_WatchPermissionDenied(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	p := &mockProvider{
		requestPermissionFn: func(ctx context.Context) (bool, error) { return false, nil },
	}

	err := svc.Watch(context.Background(), "alice", p)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if svc.Sessions() != 0 {
		t.Errorf("failed watch must not leave a session, got %d", svc.Sessions())
	}
}

func TestTrackingService_FailedWatchKeepsIngestedState(t *testing.T) {
	svc := usecases.NewTrackingService(staticRegistry{placeA}, nil, nil)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates)); err != nil {
		t.Fatal(err)
	}
	p := &mockProvider{
		requestPermissionFn: func(ctx context.Context) (bool, error) { return false, nil },
	}
	if err := svc.Watch(ctx, "alice", p); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if got := svc.Nearby("alice"); len(got) != 1 || got[0] != placeA.ID {
		t.Fatalf("expected nearby [%s] to survive the failed watch, got %v", placeA.ID, got)
	}
	events, _ := svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	if len(events) != 0 {
		t.Errorf("expected no enter while still inside, got %v", events)
	}
}

func TestTransitionRelay_PublishesAndNarrates(t *testing.T) {
	pub := &mockPublisher{}
	narr := &mockNarrator{}
	relay := usecases.NewTransitionRelay(pub, narr)
	svc := usecases.NewTrackingService(staticRegistry{placeA}, relay, pub)
	ctx := context.Background()

	_, _ = svc.Ingest(ctx, deviceFix("alice", placeA.Coordinates))
	_, _ = svc.Ingest(ctx, deviceFix("alice", southOf(placeA.Coordinates, 5000)))

	if len(pub.transitions) != 2 {
		t.Fatalf("expected enter and leave published, got %d", len(pub.transitions))
	}
	if pub.transitions[0].Fix.DeviceID != "alice" {
		t.Errorf("expected device id on published event, got %q", pub.transitions[0].Fix.DeviceID)
	}
	if len(pub.fixes) != 2 {
		t.Errorf("expected 2 fixes published, got %d", len(pub.fixes))
	}
	if len(narr.places) != 1 || narr.places[0] != placeA.ID {
		t.Errorf("expected narration only on enter, got %v", narr.places)
	}
}

func TestTransitionRelay_PublishErrorDoesNotStopNarration(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	narr := &mockNarrator{}
	tr := usecases.NewProximityTracker(staticRegistry{placeA})
	detach := usecases.NewTransitionRelay(pub, narr).Attach(tr)

	tr.ProcessFix(fixAt(placeA.Coordinates))
	detach()
	tr.Reset()
	tr.ProcessFix(fixAt(placeA.Coordinates))

	if len(narr.places) != 1 {
		t.Fatalf("expected one narration before detach, got %d", len(narr.places))
	}
}
