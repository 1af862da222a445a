package storage

import (
	"time"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/sensor"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Store persists notifications and answers history queries.
type Store interface {
	alerts.Persister
	QueryAlertHistory(days int, rule string) []AlertRecord
	QueryAnomalies(days int) []AnomalyRecord
	QueryDailySummaries(days int) []DailySummary
	DroppedWrites() int64
	Close() error
}

// AlertRecord is a stored alert.
type AlertRecord struct {
	AlertID    string        `json:"alert_id"`
	Rule       string        `json:"rule"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Alert converts the record back into an engine alert.
func (r AlertRecord) Alert() alerts.Alert {
	return alerts.Alert{ID: r.AlertID, Rule: r.Rule, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
}

// AnomalyRecord is a stored ordering anomaly.
type AnomalyRecord struct {
	Dimension  string    `json:"dimension"`
	Value      float64   `json:"value"`
	ReadingAt  time.Time `json:"reading_at"`
	CurrentAt  time.Time `json:"current_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Anomaly converts the record back into an engine anomaly.
func (r AnomalyRecord) Anomaly() alerts.OrderingAnomaly {
	return alerts.OrderingAnomaly{
		Reading: sensor.SensorValue{
			Timestamp: r.ReadingAt,
			Dimension: sensor.Dimension(r.Dimension),
			Value:     r.Value,
		},
		Current: r.CurrentAt,
	}
}

// DailySummary aggregates the alerts of one rule that finished on Date.
type DailySummary struct {
	Date         string  `json:"date"`
	Rule         string  `json:"rule"`
	Alerts       int     `json:"alerts"`
	TotalSeconds float64 `json:"total_seconds"`
}

// Duration returns the summed alert time.
func (d DailySummary) Duration() time.Duration {
	return time.Duration(d.TotalSeconds * float64(time.Second))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// cutoff returns the recorded_at lower bound for a days window. Zero or
// negative days means no bound.
func cutoff(now time.Time, days int) string {
	if days <= 0 {
		return ""
	}
	return formatTime(now.AddDate(0, 0, -days))
}
