package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/metrics"
	"github.com/samirrijal/tourguide/internal/pkg/telemetry"
)

// ErrMissingDevice is returned for fixes without a device id.
var ErrMissingDevice = errors.New("device id is required")

type trackingSession struct {
	tracker  *ProximityTracker
	detach   func()
	lastSeen time.Time
}

// TrackingService owns one ProximityTracker per device. Trackers share the
// place registry but never their nearby state.
type TrackingService struct {
	places    ports.PlaceRegistry
	relay     *TransitionRelay
	publisher ports.EventPublisher
	opts      []TrackerOption
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*trackingSession
}

// NewTrackingService creates a service. relay and publisher may be nil.
func NewTrackingService(places ports.PlaceRegistry, relay *TransitionRelay, publisher ports.EventPublisher, opts ...TrackerOption) *TrackingService {
	return &TrackingService{
		places:    places,
		relay:     relay,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		log:       slog.Default().With("component", "tracking"),
		sessions:  make(map[string]*trackingSession),
	}
}

// Ingest evaluates a fix pushed by a device and returns the transitions it caused.
func (s *TrackingService) Ingest(ctx context.Context, fix domain.PositionFix) ([]domain.TransitionEvent, error) {
	if fix.DeviceID == "" {
		return nil, ErrMissingDevice
	}
	if err := fix.Coordinates.Validate(); err != nil {
		return nil, err
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = s.now()
	}

	ctx, span := otel.Tracer("tourguide/tracking").Start(ctx, telemetry.SpanIngestFix)
	defer span.End()

	events := s.session(fix.DeviceID).tracker.ProcessFix(fix)
	span.SetAttributes(
		attribute.String(telemetry.AttrDeviceID, fix.DeviceID),
		attribute.Int(telemetry.AttrTransitions, len(events)),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishFix(ctx, &fix); err != nil {
			s.log.Warn("publish fix", "device_id", fix.DeviceID, "error", err)
		}
	}
	return events, nil
}

// Watch starts streaming fixes for device from provider. A rejected start
// leaves an existing session and its nearby set untouched.
func (s *TrackingService) Watch(ctx context.Context, device string, provider ports.LocationProvider) error {
	if device == "" {
		return ErrMissingDevice
	}
	sess, created := s.sessionFor(device)
	if err := sess.tracker.Start(ctx, provider); err != nil {
		if created {
			s.drop(device, sess)
		}
		return fmt.Errorf("watch %s: %w", device, err)
	}
	return nil
}

// Nearby returns the ids of places device is currently inside.
func (s *TrackingService) Nearby(device string) []string {
	s.mu.Lock()
	sess, ok := s.sessions[device]
	s.mu.Unlock()
	if !ok {
		return []string{}
	}
	return sess.tracker.Nearby()
}

// Forget stops and drops device's tracker. The next fix starts from an empty
// nearby set and re-emits Enter for places in range.
func (s *TrackingService) Forget(device string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[device]
	delete(s.sessions, device)
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.close(sess)
	return true
}

// EvictIdle drops trackers that have not seen a fix for longer than ttl and
// returns how many were dropped. Streaming trackers are kept.
func (s *TrackingService) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var stale []*trackingSession
	for device, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) && !sess.tracker.Started() {
			stale = append(stale, sess)
			delete(s.sessions, device)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		s.close(sess)
	}
	if len(stale) > 0 {
		s.log.Info("evicted idle trackers", "count", len(stale))
	}
	return len(stale)
}

// Sessions returns the number of live trackers.
func (s *TrackingService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops every tracker.
func (s *TrackingService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*trackingSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.close(sess)
	}
}

func (s *TrackingService) session(device string) *trackingSession {
	sess, _ := s.sessionFor(device)
	return sess
}

// sessionFor returns device's session and whether this call created it.
func (s *TrackingService) sessionFor(device string) (*trackingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[device]; ok {
		sess.lastSeen = s.now()
		return sess, false
	}

	opts := append([]TrackerOption{WithLogger(s.log.With("device_id", device))}, s.opts...)
	sess := &trackingSession{
		tracker:  NewProximityTracker(s.places, opts...),
		detach:   func() {},
		lastSeen: s.now(),
	}
	if s.relay != nil {
		sess.detach = s.relay.Attach(sess.tracker)
	}
	s.sessions[device] = sess
	metrics.ActiveTrackers.Inc()
	return sess, true
}

// drop removes sess if it is still device's session.
func (s *TrackingService) drop(device string, sess *trackingSession) {
	s.mu.Lock()
	if s.sessions[device] != sess {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, device)
	s.mu.Unlock()
	s.close(sess)
}

func (s *TrackingService) close(sess *trackingSession) {
	sess.tracker.Stop()
	sess.detach()
	metrics.ActiveTrackers.Dec()
}
