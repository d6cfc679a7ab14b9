package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tourguide/internal/core/domain"
)

// Subscriber consumes proximity events with durable, acknowledged delivery.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on conn and ensures the streams exist.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeEnters delivers enter events to handler under the durable consumer
// name. A handler error redelivers the event, up to three attempts.
func (s *Subscriber) SubscribeEnters(ctx context.Context, durable string, handler func(ctx context.Context, ev *domain.TransitionEvent) error) error {
	sub, err := s.js.Subscribe("guide.proximity."+string(domain.TransitionEnter)+".>", func(msg *nats.Msg) {
		var ev domain.TransitionEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			// Poison message, never redeliver.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
