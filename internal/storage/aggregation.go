package storage

import (
	"database/sql"
	"fmt"
)

// foldIntoSummaries adds the alert_history rows recorded before cut to
// daily_summaries, keyed by the UTC date each alert finished. It must run
// in the same transaction that deletes those rows so no alert is counted
// twice. Summaries expire by updated_at, not by the date they describe,
// since replayed logs may be years old.
func foldIntoSummaries(tx *sql.Tx, cut, now string) error {
	_, err := tx.Exec(`
		INSERT INTO daily_summaries (date, rule, alerts, total_seconds, updated_at)
		SELECT substr(finished_at, 1, 10), rule, COUNT(*), SUM(elapsed_seconds), ?
		FROM alert_history
		WHERE recorded_at < ?
		GROUP BY substr(finished_at, 1, 10), rule
		ON CONFLICT(date, rule) DO UPDATE SET
			alerts = daily_summaries.alerts + excluded.alerts,
			total_seconds = daily_summaries.total_seconds + excluded.total_seconds,
			updated_at = excluded.updated_at
	`, now, cut)
	if err != nil {
		return fmt.Errorf("daily aggregation: %w", err)
	}
	return nil
}
