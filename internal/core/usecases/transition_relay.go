package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
)

const relayTimeout = 5 * time.Second

// TransitionRelay forwards tracker transitions to the event bus and starts
// narration when a place is entered. Either collaborator may be nil.
type TransitionRelay struct {
	publisher ports.EventPublisher
	narrator  ports.NarrationStarter
	log       *slog.Logger
}

// NewTransitionRelay creates a relay.
func NewTransitionRelay(publisher ports.EventPublisher, narrator ports.NarrationStarter) *TransitionRelay {
	return &TransitionRelay{
		publisher: publisher,
		narrator:  narrator,
		log:       slog.Default().With("component", "relay"),
	}
}

// Attach subscribes the relay to tr and returns a func that detaches it.
func (r *TransitionRelay) Attach(tr *ProximityTracker) func() {
	offEnter := tr.OnEnter(r.handle)
	offLeave := tr.OnLeave(r.handle)
	return func() {
		offEnter()
		offLeave()
	}
}

func (r *TransitionRelay) handle(ev domain.TransitionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()

	if r.publisher != nil {
		if err := r.publisher.PublishTransition(ctx, &ev); err != nil {
			r.log.Error("publish transition",
				"kind", ev.Kind, "place_id", ev.Place.ID, "device_id", ev.Fix.DeviceID, "error", err)
		}
	}

	if ev.Kind != domain.TransitionEnter || r.narrator == nil {
		return
	}
	if err := r.narrator.StartNarration(ctx, &ev); err != nil {
		r.log.Error("start narration",
			"place_id", ev.Place.ID, "device_id", ev.Fix.DeviceID, "error", err)
	}
}
