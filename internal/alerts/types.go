package alerts

import (
	"fmt"
	"time"

	"github.com/nixlim/growwatch/internal/sensor"
)

// Kind distinguishes alert notifications from anomaly notifications.
type Kind string

// Notification kinds.
const (
	KindAlert   Kind = "alert"
	KindAnomaly Kind = "anomaly"
)

// Alert is emitted once a rule has matched for longer than its duration
// and then stopped matching.
type Alert struct {
	ID         string    `json:"id"`
	Rule       string    `json:"rule"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Elapsed returns how long the sustained window lasted.
func (a Alert) Elapsed() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// OrderingAnomaly reports a reading whose timestamp precedes the engine's
// current timestamp. The reading is still processed.
type OrderingAnomaly struct {
	Reading sensor.SensorValue `json:"reading"`
	Current time.Time          `json:"current"`
}

func (o OrderingAnomaly) Error() string {
	return fmt.Sprintf("out-of-order %s reading at %s precedes current time %s",
		o.Reading.Dimension,
		o.Reading.Timestamp.Format(time.RFC3339),
		o.Current.Format(time.RFC3339))
}

// Notification is what subscribers receive. Exactly one of Alert or Anomaly
// is meaningful, selected by Kind.
type Notification struct {
	Kind    Kind             `json:"kind"`
	Alert   Alert            `json:"alert,omitzero"`
	Anomaly *OrderingAnomaly `json:"anomaly,omitempty"`
}

// AlertNotification wraps an alert.
func AlertNotification(a Alert) Notification {
	return Notification{Kind: KindAlert, Alert: a}
}

// AnomalyNotification wraps an ordering anomaly.
func AnomalyNotification(o OrderingAnomaly) Notification {
	return Notification{Kind: KindAnomaly, Anomaly: &o}
}

// IsAlert reports whether n carries an alert.
func (n Notification) IsAlert() bool {
	return n.Kind == KindAlert
}

// Timestamp returns the stream time the notification refers to: the end of
// the alert window, or the offending reading's timestamp.
func (n Notification) Timestamp() time.Time {
	if n.Kind == KindAnomaly && n.Anomaly != nil {
		return n.Anomaly.Reading.Timestamp
	}
	return n.Alert.FinishedAt
}

// Notifier forwards alerts to an out-of-process channel (desktop, chat...).
type Notifier interface {
	// Notify sends an alert notification. Implementations must be non-blocking.
	Notify(alert Alert)
}

// Persister records notifications to durable storage.
type Persister interface {
	Record(n Notification)
}

// NotifierListener adapts a Notifier to a broadcaster listener that only
// forwards alerts.
func NotifierListener(n Notifier) Listener {
	return func(note Notification) {
		if note.IsAlert() {
			n.Notify(note.Alert)
		}
	}
}

// PersisterListener adapts a Persister to a broadcaster listener.
func PersisterListener(p Persister) Listener {
	return func(note Notification) {
		p.Record(note)
	}
}
