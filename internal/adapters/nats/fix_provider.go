package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tourguide/internal/core/domain"
	"github.com/samirrijal/tourguide/internal/core/ports"
)

// FixProvider implements ports.LocationProvider for one device by reading the
// fixes it publishes to guide.fix.<device>. Throttling is left to the tracker.
type FixProvider struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	device  string
	subject string
	log     *slog.Logger
}

// NewFixProvider creates a provider for device.
func NewFixProvider(conn *nats.Conn, device string) (*FixProvider, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &FixProvider{
		conn:    conn,
		js:      js,
		device:  device,
		subject: FixSubject(device),
		log:     slog.Default().With("component", "fix_provider", "device_id", device),
	}, nil
}

// RequestPermission grants access while the connection is usable. Consent is
// given on the device by publishing fixes at all.
func (p *FixProvider) RequestPermission(ctx context.Context) (bool, error) {
	if p.conn.IsClosed() {
		return false, nats.ErrConnectionClosed
	}
	return true, nil
}

// CurrentFix returns the last fix the device published, or
// domain.ErrSignalUnavailable when there is none.
func (p *FixProvider) CurrentFix(ctx context.Context) (domain.PositionFix, error) {
	msg, err := p.js.GetLastMsg(FixStream, p.subject, nats.Context(ctx))
	if errors.Is(err, nats.ErrMsgNotFound) {
		return domain.PositionFix{}, domain.ErrSignalUnavailable
	}
	if err != nil {
		return domain.PositionFix{}, fmt.Errorf("%w: %v", domain.ErrSignalUnavailable, err)
	}
	return decodeFix(msg.Data, p.device, msg.Time)
}

// Subscribe streams new fixes to onFix until the subscription is closed.
func (p *FixProvider) Subscribe(ctx context.Context, opts ports.SubscribeOptions, onFix func(domain.PositionFix)) (ports.Subscription, error) {
	sub, err := p.js.Subscribe(p.subject, func(msg *nats.Msg) {
		var stored time.Time
		if meta, err := msg.Metadata(); err == nil {
			stored = meta.Timestamp
		}
		fix, err := decodeFix(msg.Data, p.device, stored)
		if err != nil {
			p.log.Warn("dropping malformed fix", "error", err)
			return
		}
		onFix(fix)
	},
		nats.OrderedConsumer(),
		nats.DeliverNew(),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.subject, err)
	}
	return sub, nil
}

// decodeFix parses a published fix. A fix without a timestamp takes the time
// the stream stored it, or now when that is unknown.
func decodeFix(data []byte, device string, stored time.Time) (domain.PositionFix, error) {
	var fix domain.PositionFix
	if err := json.Unmarshal(data, &fix); err != nil {
		return domain.PositionFix{}, err
	}
	if err := fix.Coordinates.Validate(); err != nil {
		return domain.PositionFix{}, err
	}
	if fix.DeviceID == "" {
		fix.DeviceID = device
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = stored
		if stored.IsZero() {
			fix.Timestamp = time.Now()
		}
	}
	return fix, nil
}
