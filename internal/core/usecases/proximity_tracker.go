package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/pkg/metrics"
)

// Default stream throttle, matching the device watch settings.
const (
	DefaultMinFixInterval = 5 * time.Second
	DefaultMinFixDistance = 10.0 // meters

	defaultInitialFixTimeout = 10 * time.Second
)

// TransitionListener receives enter or leave events.
type TransitionListener func(domain.TransitionEvent)

// FixListener receives every fix the tracker evaluates.
type FixListener func(domain.PositionFix)

// TrackerOption configures a ProximityTracker.
type TrackerOption func(*ProximityTracker)

// WithThrottle sets the minimum interval and movement between streamed fixes.
func WithThrottle(minInterval time.Duration, minDistance float64) TrackerOption {
	return func(t *ProximityTracker) {
		t.minInterval = minInterval
		t.minDistance = minDistance
	}
}

// WithResetOnStart controls whether Start clears the nearby set. Default true.
func WithResetOnStart(reset bool) TrackerOption {
	return func(t *ProximityTracker) { t.resetOnStart = reset }
}

// WithInitialFixTimeout bounds how long Start waits for the first fix.
func WithInitialFixTimeout(d time.Duration) TrackerOption {
	return func(t *ProximityTracker) { t.initialFixTimeout = d }
}

// WithLogger sets the tracker's logger.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *ProximityTracker) { t.log = l }
}

// ProximityTracker keeps, per registered place, whether the user is inside its
// detection radius and notifies listeners exactly once per transition.
//
// For every place, Enter and Leave strictly alternate starting with Enter.
// The nearby set only changes through ProcessFix and Reset.
type ProximityTracker struct {
	places ports.PlaceRegistry
	log    *slog.Logger

	minInterval       time.Duration
	minDistance       float64
	resetOnStart      bool
	initialFixTimeout time.Duration

	// dmu serializes evaluate+dispatch so listeners observe transitions in
	// the order they were decided. Listeners must not call ProcessFix.
	// A listener may call Start; the initial fix is then delivered once the
	// current dispatch returns.
	dmu sync.Mutex

	mu       sync.Mutex
	nearby   map[string]struct{}
	lastFix  *domain.PositionFix
	accepted *domain.PositionFix // last streamed fix that passed the throttle
	sub      ports.Subscription
	started  bool
	gen      uint64 // bumped by Start/Stop; stale deliveries are dropped
	evals    uint64 // fixes evaluated so far

	lmu      sync.RWMutex
	nextID   int
	onEnter  map[int]TransitionListener
	onLeave  map[int]TransitionListener
	onChange map[int]FixListener
}

// NewProximityTracker creates a tracker over the given place registry.
func NewProximityTracker(places ports.PlaceRegistry, opts ...TrackerOption) *ProximityTracker {
	t := &ProximityTracker{
		places:            places,
		log:               slog.Default(),
		minInterval:       DefaultMinFixInterval,
		minDistance:       DefaultMinFixDistance,
		resetOnStart:      true,
		initialFixTimeout: defaultInitialFixTimeout,
		nearby:            make(map[string]struct{}),
		onEnter:           make(map[int]TransitionListener),
		onLeave:           make(map[int]TransitionListener),
		onChange:          make(map[int]FixListener),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ProcessFix evaluates fix against every place and returns the transitions it caused,
// in registry order. Listeners are notified before it returns.
// A fix exactly on the radius counts as inside.
func (t *ProximityTracker) ProcessFix(fix domain.PositionFix) []domain.TransitionEvent {
	t.dmu.Lock()
	defer t.dmu.Unlock()

	t.mu.Lock()
	events := t.evaluateLocked(fix)
	t.mu.Unlock()

	t.dispatch(0, fix, events)
	return events
}

func (t *ProximityTracker) evaluateLocked(fix domain.PositionFix) []domain.TransitionEvent {
	f := fix
	t.lastFix = &f
	t.evals++
	metrics.FixesProcessed.Inc()

	var events []domain.TransitionEvent
	for _, place := range t.places.Places() {
		d := fix.Coordinates.DistanceTo(place.Coordinates)
		_, inside := t.nearby[place.ID]

		switch {
		case d <= place.EffectiveRadius() && !inside:
			t.nearby[place.ID] = struct{}{}
			events = append(events, domain.TransitionEvent{
				Kind: domain.TransitionEnter, Place: place, Distance: d, Fix: fix,
			})
		case d > place.EffectiveRadius() && inside:
			delete(t.nearby, place.ID)
			events = append(events, domain.TransitionEvent{
				Kind: domain.TransitionLeave, Place: place, Distance: d, Fix: fix,
			})
		}
	}
	return events
}

// dispatch notifies listeners. For streamed fixes (gen != 0) every call is
// preceded by a liveness check so a Stop issued mid-dispatch, including from a
// listener, silences the remaining notifications.
func (t *ProximityTracker) dispatch(gen uint64, fix domain.PositionFix, events []domain.TransitionEvent) {
	t.lmu.RLock()
	changed := collect(t.onChange)
	enter := collect(t.onEnter)
	leave := collect(t.onLeave)
	t.lmu.RUnlock()

	for _, ev := range events {
		metrics.Transitions.WithLabelValues(string(ev.Kind)).Inc()
		t.log.Debug("proximity transition",
			"kind", ev.Kind, "place_id", ev.Place.ID, "distance_m", ev.Distance)
	}

	for _, fn := range changed {
		if !t.live(gen) {
			return
		}
		fn(fix)
	}
	for _, ev := range events {
		listeners := enter
		if ev.Kind == domain.TransitionLeave {
			listeners = leave
		}
		for _, fn := range listeners {
			if !t.live(gen) {
				return
			}
			fn(ev)
		}
	}
}

func (t *ProximityTracker) live(gen uint64) bool {
	if gen == 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && t.gen == gen
}

// collect snapshots listeners in registration order.
func collect[L any](m map[int]L) []L {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]L, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

// Reset clears the nearby set so the next fix re-emits Enter for every place in range.
func (t *ProximityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nearby = make(map[string]struct{})
	t.accepted = nil
}

// Nearby returns the IDs of places the user is currently inside, sorted.
func (t *ProximityTracker) Nearby() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.nearby))
	for id := range t.nearby {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastFix returns the most recent evaluated fix.
func (t *ProximityTracker) LastFix() (domain.PositionFix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastFix == nil {
		return domain.PositionFix{}, false
	}
	return *t.lastFix, true
}

// OnEnter registers fn for enter events and returns a func that removes it.
func (t *ProximityTracker) OnEnter(fn TransitionListener) func() {
	return register(t, t.onEnter, fn)
}

// OnLeave registers fn for leave events and returns a func that removes it.
func (t *ProximityTracker) OnLeave(fn TransitionListener) func() {
	return register(t, t.onLeave, fn)
}

// OnLocationChanged registers fn for every evaluated fix.
func (t *ProximityTracker) OnLocationChanged(fn FixListener) func() {
	return register(t, t.onChange, fn)
}

func register[L any](t *ProximityTracker, m map[int]L, fn L) func() {
	t.lmu.Lock()
	id := t.nextID
	t.nextID++
	m[id] = fn
	t.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.lmu.Lock()
			delete(m, id)
			t.lmu.Unlock()
		})
	}
}

// Started reports whether the tracker is consuming a provider stream.
func (t *ProximityTracker) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Start begins consuming fixes from provider. Permission errors reject the start;
// a missing signal does not, the tracker simply waits for fixes. A rejected
// start leaves the nearby set as it was. Calling Start on a started tracker is
// a no-op.
func (t *ProximityTracker) Start(ctx context.Context, provider ports.LocationProvider) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	granted, err := provider.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		return domain.ErrPermissionDenied
	}

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	// A rejected start restores the previous nearby set unless a fix has
	// been evaluated against the cleared one since.
	prevNearby, mark := t.nearby, t.evals
	if t.resetOnStart {
		t.nearby = make(map[string]struct{})
	}
	restore := func() {
		if t.evals == mark {
			t.nearby = prevNearby
		}
	}
	t.accepted = nil
	t.gen++
	gen := t.gen
	t.started = true
	t.mu.Unlock()

	sub, err := provider.Subscribe(ctx, ports.SubscribeOptions{
		MinInterval: t.minInterval,
		MinDistance: t.minDistance,
	}, func(fix domain.PositionFix) {
		t.deliver(gen, fix)
	})
	if err != nil {
		t.mu.Lock()
		if t.gen == gen {
			t.started = false
			t.gen++
			restore()
		}
		t.mu.Unlock()
		return fmt.Errorf("subscribe: %w", err)
	}

	t.mu.Lock()
	if t.gen != gen {
		// Stopped while subscribing.
		t.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	t.sub = sub
	t.mu.Unlock()

	fixCtx, cancel := context.WithTimeout(ctx, t.initialFixTimeout)
	fix, err := provider.CurrentFix(fixCtx)
	cancel()
	switch {
	case err == nil:
		if t.dmu.TryLock() {
			t.deliverLocked(gen, fix)
			t.dmu.Unlock()
		} else {
			// Held by a dispatch in progress, possibly the one that called Start.
			go t.deliver(gen, fix)
		}
	case errors.Is(err, domain.ErrPermissionDenied):
		t.Stop()
		t.mu.Lock()
		restore()
		t.mu.Unlock()
		return err
	default:
		t.log.Warn("no initial fix, waiting for stream", "error", err)
	}

	return nil
}

// deliver runs a streamed fix through the throttle and ProcessFix, unless the
// subscription that produced it has since been stopped.
func (t *ProximityTracker) deliver(gen uint64, fix domain.PositionFix) {
	t.dmu.Lock()
	defer t.dmu.Unlock()
	t.deliverLocked(gen, fix)
}

// deliverLocked is deliver with dmu held.
func (t *ProximityTracker) deliverLocked(gen uint64, fix domain.PositionFix) {
	t.mu.Lock()
	if !t.started || t.gen != gen {
		t.mu.Unlock()
		return
	}
	if t.throttledLocked(fix) {
		t.mu.Unlock()
		metrics.FixesThrottled.Inc()
		return
	}
	f := fix
	t.accepted = &f
	events := t.evaluateLocked(fix)
	t.mu.Unlock()

	t.dispatch(gen, fix, events)
}

func (t *ProximityTracker) throttledLocked(fix domain.PositionFix) bool {
	if t.accepted == nil {
		return false
	}
	prev := t.accepted
	if t.minInterval > 0 && !fix.Timestamp.IsZero() && !prev.Timestamp.IsZero() &&
		fix.Timestamp.Sub(prev.Timestamp) < t.minInterval {
		return true
	}
	if t.minDistance > 0 && fix.Coordinates.DistanceTo(prev.Coordinates) < t.minDistance {
		return true
	}
	return false
}

// Stop ends the provider stream. No events are emitted after it returns until the
// next Start. Safe to call at any time and more than once.
func (t *ProximityTracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	wasStarted := t.started
	t.started = false
	t.gen++
	t.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			t.log.Warn("unsubscribe location stream", "error", err)
		}
	}
	if wasStarted {
		t.log.Debug("proximity tracking stopped")
	}
}
