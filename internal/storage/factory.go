package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nixlim/growwatch/internal/config"
	"github.com/nixlim/growwatch/internal/logger"
)

// NewStore opens the configured SQLite store, falling back to memory when
// no path is set or the database cannot be opened. The bool reports
// whether history will survive a restart.
func NewStore(cfg config.StorageConfig) (Store, bool, error) {
	if cfg.DBPath == "" {
		return NewMemoryStore(), false, nil
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays, cfg.SummaryRetentionDays)
	if err != nil {
		log := logger.WithComponent("storage")
		log.Warn().Err(err).
			Str("path", dbPath).
			Msg("SQLite storage unavailable, falling back to in-memory store")
		return NewMemoryStore(), false, nil
	}

	return store, true, nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
