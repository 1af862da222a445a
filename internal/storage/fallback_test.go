package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/growwatch/internal/config"
)

func TestFallback_SQLiteSuccess(t *testing.T) {
	cfg := config.StorageConfig{
		DBPath:               filepath.Join(t.TempDir(), "test.db"),
		RetentionDays:        7,
		SummaryRetentionDays: 90,
	}

	store, isPersistent, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if !isPersistent {
		t.Error("expected isPersistent=true for valid DB path")
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", store)
	}
}

func TestFallback_UnwritablePath(t *testing.T) {
	// A regular file where a directory is expected cannot be created
	// through, even with root privileges.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.StorageConfig{
		DBPath:               filepath.Join(blocker, "nested", "test.db"),
		RetentionDays:        7,
		SummaryRetentionDays: 90,
	}

	store, isPersistent, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore should not return error on fallback: %v", err)
	}
	defer func() { _ = store.Close() }()

	if isPersistent {
		t.Error("expected isPersistent=false for unwritable path")
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore fallback, got %T", store)
	}
}

func TestFallback_ExplicitInMemory(t *testing.T) {
	store, isPersistent, err := NewStore(config.StorageConfig{})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if isPersistent {
		t.Error("expected isPersistent=false when no path is configured")
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", store)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2016, 8, 1, 0, 0, 0, 0, time.UTC)

	store.Record(sampleAlert("a2", "Botrytis", start.Add(24*time.Hour), 370))
	store.Record(sampleAlert("a1", "Botrytis", start, 400))
	store.Record(sampleAlert("a3", "Oidium sporulation", start, 90))

	history := store.QueryAlertHistory(0, "Botrytis")
	if len(history) != 2 || history[0].AlertID != "a1" {
		t.Errorf("history should be ordered by finish time: %+v", history)
	}

	summaries := store.QueryDailySummaries(0)
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %+v", summaries)
	}
	if summaries[0].Date != "2016-08-02" {
		t.Errorf("newest date first, got %s", summaries[0].Date)
	}

	store.now = func() time.Time { return time.Now().AddDate(0, 0, 2) }
	if got := store.QueryAlertHistory(1, ""); len(got) != 0 {
		t.Errorf("aged out: expected 0, got %d", len(got))
	}
}
