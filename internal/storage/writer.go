package storage

import (
	"database/sql"
	"math"
)

// alertHistoryRow holds the data for a single alert_history row.
type alertHistoryRow struct {
	AlertID        string
	Rule           string
	StartedAt      string
	FinishedAt     string
	ElapsedSeconds float64
	RecordedAt     string
}

// anomalyRow holds the data for a single anomalies row.
type anomalyRow struct {
	Dimension  string
	Value      float64
	ReadingAt  string
	CurrentAt  string
	RecordedAt string
}

// sanitizeFloat replaces NaN and Inf with 0.0.
func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}

func (s *SQLiteStore) writeAlertHistory(tx *sql.Tx, row *alertHistoryRow) error {
	_, err := tx.Exec(`
		INSERT INTO alert_history (alert_id, rule, started_at, finished_at, elapsed_seconds, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.AlertID, row.Rule, row.StartedAt, row.FinishedAt, sanitizeFloat(row.ElapsedSeconds), row.RecordedAt)
	return err
}

func (s *SQLiteStore) writeAnomaly(tx *sql.Tx, row *anomalyRow) error {
	_, err := tx.Exec(`
		INSERT INTO anomalies (dimension, value, reading_at, current_at, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, row.Dimension, sanitizeFloat(row.Value), row.ReadingAt, row.CurrentAt, row.RecordedAt)
	return err
}
