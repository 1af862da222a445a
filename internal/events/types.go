package events

import "time"

// Entry holds a display-ready notification with metadata.
type Entry struct {
	Kind      string    `json:"kind"` // alert, anomaly
	Rule      string    `json:"rule,omitempty"`
	AlertID   string    `json:"alert_id,omitempty"`
	Formatted string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
