package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Notification is the payload pushed to a device's notify subject.
type Notification struct {
	Device string    `json:"device"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier implements ports.NotificationService by publishing on core NATS.
// Devices, or the /ws relay, subscribe to guide.notify.<device>.
type Notifier struct {
	conn *nats.Conn
	now  func() time.Time
}

// NewNotifier creates a Notifier on conn.
func NewNotifier(conn *nats.Conn) *Notifier {
	return &Notifier{conn: conn, now: time.Now}
}

// SendPush publishes a notification to userID's subject and flushes so a
// lost connection surfaces as an error.
func (n *Notifier) SendPush(ctx context.Context, userID, title, body string) error {
	data, err := json.Marshal(Notification{Device: userID, Title: title, Body: body, SentAt: n.now().UTC()})
	if err != nil {
		return err
	}
	if err := n.conn.Publish(NotifySubject(userID), data); err != nil {
		return fmt.Errorf("notify %s: %w", userID, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("notify %s: flush: %w", userID, err)
	}
	return nil
}
