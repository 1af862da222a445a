package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context, retentionDays, summaryRetentionDays int) {
	go s.maintenanceLoop(ctx, retentionDays, summaryRetentionDays)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context, retentionDays, summaryRetentionDays int) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(retentionDays, summaryRetentionDays); err != nil {
				s.log.Error().Err(err).Msg("maintenance cycle failed")
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					s.log.Error().Err(err).Msg("VACUUM failed")
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// runMaintenanceCycle summarises alert history older than the retention
// window, then prunes raw history, anomalies and old summaries.
func (s *SQLiteStore) runMaintenanceCycle(retentionDays, summaryRetentionDays int) error {
	now := s.now()

	if retentionDays > 0 {
		if err := s.pruneHistory(cutoff(now, retentionDays), formatTime(now)); err != nil {
			return err
		}
	}

	if summaryRetentionDays > 0 {
		if _, err := s.db.Exec("DELETE FROM daily_summaries WHERE updated_at < ?", cutoff(now, summaryRetentionDays)); err != nil {
			return fmt.Errorf("pruning old summaries: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) pruneHistory(cut, now string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := foldIntoSummaries(tx, cut, now); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM alert_history WHERE recorded_at < ?", cut); err != nil {
		return fmt.Errorf("pruning old alerts: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM anomalies WHERE recorded_at < ?", cut); err != nil {
		return fmt.Errorf("pruning old anomalies: %w", err)
	}
	return tx.Commit()
}
