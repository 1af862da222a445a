package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/growwatch/internal/config"
	"github.com/nixlim/growwatch/internal/sensor"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = ""
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a
}

func TestNewApp_DeliversToEveryListener(t *testing.T) {
	a := newTestApp(t)
	if a.persistent {
		t.Error("an empty db_path should give an in-memory store")
	}

	t0 := time.Date(2016, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []float64{95, 96, 94, 50} {
		a.sup.Push(sensor.SensorValue{Timestamp: t0.Add(time.Duration(i) * 30 * time.Minute), Dimension: sensor.Humidity, Value: v})
	}
	// Out of order: raises an anomaly.
	a.sup.Push(sensor.SensorValue{Timestamp: t0, Dimension: sensor.Humidity, Value: 50})

	rep := a.collector.Report()
	if len(rep.Rows) != 1 || rep.Rows[0].Rule != "Oidium sporulation" {
		t.Errorf("collector rows: %+v", rep.Rows)
	}
	if len(rep.Anomalies) != 1 {
		t.Errorf("collector anomalies: %d", len(rep.Anomalies))
	}
	if got := a.feed.Len(); got != 2 {
		t.Errorf("feed: want 2 entries, got %d", got)
	}
	if got := a.store.QueryAlertHistory(0, ""); len(got) != 1 {
		t.Errorf("store: want 1 alert, got %d", len(got))
	}

	if err := a.close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestNewApp_InvalidTimeZone(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = ""
	cfg.Time.Zone = "Mars/Olympus_Mons"
	if _, err := newApp(cfg, appOptions{}); err == nil {
		t.Error("expected an error for an unknown zone")
	}
}

func TestCloseApp_KeepsCommandError(t *testing.T) {
	a := newTestApp(t)

	cmdErr := errors.New("replay interrupted")
	err := cmdErr
	closeApp(a, &err)
	if !errors.Is(err, cmdErr) {
		t.Errorf("want the command error, got %v", err)
	}

	var none error
	closeApp(newTestApp(t), &none)
	if none != nil {
		t.Errorf("clean close should leave a nil error, got %v", none)
	}
}

func TestServeModel_QuitStopsReceiver(t *testing.T) {
	a := newTestApp(t)
	defer a.close()

	stopped := 0
	m := newServeModel(a, "127.0.0.1:8080", func() { stopped++ })
	if m.Init() == nil {
		t.Error("the live table should refresh periodically")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if stopped != 1 {
		t.Errorf("stop calls: want 1, got %d", stopped)
	}
}
