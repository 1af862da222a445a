package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingNotifier) Notify(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

type recordingPersister struct {
	notes []Notification
}

func (r *recordingPersister) Record(n Notification) {
	r.notes = append(r.notes, n)
}

func TestNotificationText(t *testing.T) {
	start := time.Date(2016, 8, 1, 0, 5, 0, 0, time.Local)
	a := Alert{Rule: "Oidium sporulation", StartedAt: start, FinishedAt: start.Add(65 * time.Minute)}

	if got := notificationTitle(a); got != "growwatch: Oidium sporulation" {
		t.Errorf("title: got %q", got)
	}
	body := notificationBody(a)
	if !strings.Contains(body, "01/08 00:05") || !strings.Contains(body, "01/08 01:10") {
		t.Errorf("body should contain both window ends, got %q", body)
	}
	if !strings.Contains(body, "1h5m0s") {
		t.Errorf("body should contain elapsed time, got %q", body)
	}
}

func TestNotifierListener_ForwardsAlertsOnly(t *testing.T) {
	rec := &recordingNotifier{}
	listener := NotifierListener(rec)

	listener(AlertNotification(Alert{Rule: "Botrytis"}))
	listener(AnomalyNotification(OrderingAnomaly{}))

	if len(rec.alerts) != 1 || rec.alerts[0].Rule != "Botrytis" {
		t.Errorf("expected exactly the Botrytis alert, got %+v", rec.alerts)
	}
}

func TestPersisterListener_RecordsEverything(t *testing.T) {
	rec := &recordingPersister{}
	listener := PersisterListener(rec)

	listener(AlertNotification(Alert{Rule: "Botrytis"}))
	listener(AnomalyNotification(OrderingAnomaly{}))

	if len(rec.notes) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(rec.notes))
	}
	if rec.notes[1].Kind != KindAnomaly {
		t.Errorf("second notification kind: want anomaly, got %s", rec.notes[1].Kind)
	}
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	n.Notify(Alert{Rule: "x"})
}

func TestRunner_BoundsPendingCommands(t *testing.T) {
	r := newRunner(2)
	release := make(chan struct{})
	var mu sync.Mutex
	var ran []string
	r.command = func(_ context.Context, name string, args ...string) error {
		<-release
		mu.Lock()
		ran = append(ran, args[0])
		mu.Unlock()
		return nil
	}

	for i, want := range []bool{true, true, false, false} {
		if got := r.start("Botrytis", "notify", string(rune('a'+i))); got != want {
			t.Errorf("start %d: want %v, got %v", i, want, got)
		}
	}
	if r.Dropped() != 2 {
		t.Errorf("Dropped: want 2, got %d", r.Dropped())
	}

	close(release)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 {
		t.Errorf("expected 2 commands to run, got %v", ran)
	}

	// Slots are free again once the pending commands finished.
	if !r.start("Botrytis", "notify", "e") {
		t.Error("start after Close should get a slot")
	}
	_ = r.Close()
}

func TestRunner_CommandErrorIsNotFatal(t *testing.T) {
	r := newRunner(1)
	r.command = func(context.Context, string, ...string) error {
		return errors.New("no notification daemon")
	}
	if !r.start("Botrytis", "notify-send") {
		t.Fatal("start should take the free slot")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if r.Dropped() != 0 {
		t.Errorf("Dropped: want 0, got %d", r.Dropped())
	}
}
