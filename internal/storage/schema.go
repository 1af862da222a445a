package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// OpenDB opens (creating if needed) the alert history database in WAL mode
// and brings its schema up to date.
func OpenDB(dbPath string) (*sql.DB, error) {
	parentDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion int
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	} else {
		err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&currentVersion)
		if err == sql.ErrNoRows {
			currentVersion = 0
		} else if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	if currentVersion > currentSchemaVersion {
		return fmt.Errorf(
			"database schema version %d is newer than this growwatch version supports (max: %d); upgrade growwatch or delete %s to start fresh",
			currentVersion, currentSchemaVersion, dbPath,
		)
	}

	if currentVersion < currentSchemaVersion {
		if err := applyMigrations(db, currentVersion); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	return nil
}

func applyMigrations(db *sql.DB, fromVersion int) error {
	if fromVersion == 0 {
		if err := migrateV0ToV1(db); err != nil {
			return fmt.Errorf("migration v0→v1: %w", err)
		}
	}

	return nil
}

func migrateV0ToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []struct {
		what string
		sql  string
	}{
		{"schema_version table", `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)`},
		{"schema version", "INSERT INTO schema_version (version) VALUES (1)"},
		{"alert_history table", `
			CREATE TABLE IF NOT EXISTS alert_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				alert_id TEXT NOT NULL,
				rule TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				elapsed_seconds REAL NOT NULL,
				recorded_at TEXT NOT NULL
			)`},
		{"anomalies table", `
			CREATE TABLE IF NOT EXISTS anomalies (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				dimension TEXT NOT NULL,
				value REAL NOT NULL,
				reading_at TEXT NOT NULL,
				current_at TEXT NOT NULL,
				recorded_at TEXT NOT NULL
			)`},
		{"daily_summaries table", `
			CREATE TABLE IF NOT EXISTS daily_summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				date TEXT NOT NULL,
				rule TEXT NOT NULL,
				alerts INTEGER NOT NULL,
				total_seconds REAL NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE(date, rule)
			)`},
		{"idx_alert_history_rule", "CREATE INDEX IF NOT EXISTS idx_alert_history_rule ON alert_history(rule)"},
		{"idx_alert_history_recorded", "CREATE INDEX IF NOT EXISTS idx_alert_history_recorded ON alert_history(recorded_at)"},
		{"idx_anomalies_recorded", "CREATE INDEX IF NOT EXISTS idx_anomalies_recorded ON anomalies(recorded_at)"},
		{"idx_daily_updated", "CREATE INDEX IF NOT EXISTS idx_daily_updated ON daily_summaries(updated_at)"},
	}

	for _, st := range statements {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("creating %s: %w", st.what, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
