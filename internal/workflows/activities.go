package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
	"github.com/samirrijal/tourguide/internal/core/usecases"
)

const narrationTTL = 24 * 60 * 60 // seconds

// NarrationKey is the cache key holding a device's latest narration.
func NarrationKey(deviceID string) string {
	return "narration:last:" + deviceID
}

// NarrationActivities holds the activity implementations for the narration workflow.
type NarrationActivities struct {
	Places   ports.PlaceRepository
	Notifier ports.NotificationService
	Cache    ports.CacheService
	Now      func() time.Time
}

// LoadPlace returns the place by id.
func (a *NarrationActivities) LoadPlace(ctx context.Context, placeID string) (domain.Place, error) {
	p, err := a.Places.GetByID(ctx, placeID)
	if err != nil {
		return domain.Place{}, fmt.Errorf("load place %s: %w", placeID, err)
	}
	if p == nil {
		return domain.Place{}, fmt.Errorf("load place %s: %w", placeID, domain.ErrPlaceNotFound)
	}
	return *p, nil
}

// ComposeNarration builds the narration for deviceID arriving at place.
func (a *NarrationActivities) ComposeNarration(ctx context.Context, deviceID string, place domain.Place, distance float64) (domain.Narration, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	title, text := usecases.ComposeNarration(place, distance)
	return domain.Narration{
		DeviceID:  deviceID,
		PlaceID:   place.ID,
		Title:     title,
		Text:      text,
		CreatedAt: now().UTC(),
	}, nil
}

// SendNarration pushes the narration to the device.
func (a *NarrationActivities) SendNarration(ctx context.Context, n domain.Narration) error {
	if a.Notifier == nil {
		slog.Info("narration (no notifier)", "device_id", n.DeviceID, "place_id", n.PlaceID, "title", n.Title)
		return nil
	}
	return a.Notifier.SendPush(ctx, n.DeviceID, n.Title, n.Text)
}

// RecordNarration stores the narration as the device's latest.
func (a *NarrationActivities) RecordNarration(ctx context.Context, n domain.Narration) error {
	if a.Cache == nil {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return a.Cache.Set(ctx, NarrationKey(n.DeviceID), data, narrationTTL)
}
