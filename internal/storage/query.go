package storage

import (
	"time"
)

// QueryAlertHistory returns alerts recorded within the last days (all of
// them when days <= 0), optionally restricted to one rule, oldest first.
func (s *SQLiteStore) QueryAlertHistory(days int, rule string) []AlertRecord {
	cut := cutoff(s.now(), days)

	rows, err := s.db.Query(`
		SELECT alert_id, rule, started_at, finished_at, elapsed_seconds, recorded_at
		FROM alert_history
		WHERE (? = '' OR recorded_at >= ?)
		  AND (? = '' OR rule = ?)
		ORDER BY finished_at, id
	`, cut, cut, rule, rule)
	if err != nil {
		s.log.Error().Err(err).Msg("querying alert history")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		var startedAt, finishedAt, recordedAt string
		var elapsed float64
		if err := rows.Scan(&r.AlertID, &r.Rule, &startedAt, &finishedAt, &elapsed, &recordedAt); err != nil {
			s.log.Error().Err(err).Msg("scanning alert history row")
			continue
		}
		r.StartedAt = parseTime(startedAt)
		r.FinishedAt = parseTime(finishedAt)
		r.RecordedAt = parseTime(recordedAt)
		r.Elapsed = time.Duration(elapsed * float64(time.Second))
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("iterating alert history rows")
	}
	return records
}

// QueryAnomalies returns anomalies recorded within the last days, oldest first.
func (s *SQLiteStore) QueryAnomalies(days int) []AnomalyRecord {
	cut := cutoff(s.now(), days)

	rows, err := s.db.Query(`
		SELECT dimension, value, reading_at, current_at, recorded_at
		FROM anomalies
		WHERE (? = '' OR recorded_at >= ?)
		ORDER BY id
	`, cut, cut)
	if err != nil {
		s.log.Error().Err(err).Msg("querying anomalies")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var records []AnomalyRecord
	for rows.Next() {
		var r AnomalyRecord
		var readingAt, currentAt, recordedAt string
		if err := rows.Scan(&r.Dimension, &r.Value, &readingAt, &currentAt, &recordedAt); err != nil {
			s.log.Error().Err(err).Msg("scanning anomaly row")
			continue
		}
		r.ReadingAt = parseTime(readingAt)
		r.CurrentAt = parseTime(currentAt)
		r.RecordedAt = parseTime(recordedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("iterating anomaly rows")
	}
	return records
}

// QueryDailySummaries merges folded summaries with raw history that has not
// been pruned yet, newest date first.
func (s *SQLiteStore) QueryDailySummaries(days int) []DailySummary {
	cut := cutoff(s.now(), days)

	rows, err := s.db.Query(`
		SELECT date, rule, SUM(alerts), SUM(total_seconds)
		FROM (
			SELECT date, rule, alerts, total_seconds
			FROM daily_summaries
			WHERE (? = '' OR updated_at >= ?)

			UNION ALL

			SELECT substr(finished_at, 1, 10), rule, 1, elapsed_seconds
			FROM alert_history
			WHERE (? = '' OR recorded_at >= ?)
		)
		GROUP BY date, rule
		ORDER BY date DESC, rule
	`, cut, cut, cut, cut)
	if err != nil {
		s.log.Error().Err(err).Msg("querying daily summaries")
		return nil
	}
	defer func() { _ = rows.Close() }()

	var summaries []DailySummary
	for rows.Next() {
		var ds DailySummary
		if err := rows.Scan(&ds.Date, &ds.Rule, &ds.Alerts, &ds.TotalSeconds); err != nil {
			s.log.Error().Err(err).Msg("scanning daily summary row")
			continue
		}
		summaries = append(summaries, ds)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("iterating daily summary rows")
	}
	return summaries
}
