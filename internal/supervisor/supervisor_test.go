package supervisor

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/rules"
	"github.com/nixlim/growwatch/internal/sensor"
)

var day = time.Date(2016, 8, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func humidityRule() *rules.Rule {
	return &rules.Rule{
		Name:     "wet",
		Duration: 60 * time.Minute,
		Expressions: []rules.Expression{
			{Dimension: sensor.Humidity, Operator: rules.GreaterThan, Value: 90},
		},
	}
}

// recorder collects every notification delivered to it. The supervisor
// holds its lock while delivering, so no extra locking is needed.
type recorder struct {
	notes []alerts.Notification
}

func (r *recorder) listen(n alerts.Notification) {
	r.notes = append(r.notes, n)
}

func (r *recorder) alerts() []alerts.Alert {
	var out []alerts.Alert
	for _, n := range r.notes {
		if n.IsAlert() {
			out = append(out, n.Alert)
		}
	}
	return out
}

func (r *recorder) anomalies() []alerts.OrderingAnomaly {
	var out []alerts.OrderingAnomaly
	for _, n := range r.notes {
		if n.Kind == alerts.KindAnomaly {
			out = append(out, *n.Anomaly)
		}
	}
	return out
}

func newSupervisor(t *testing.T, set ...*rules.Rule) (*Supervisor, *recorder) {
	t.Helper()
	n := 0
	s, err := New(set, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	s.Subscribe(rec.listen)
	return s, rec
}

func push(s *Supervisor, ts time.Time, d sensor.Dimension, v float64) {
	s.Push(sensor.SensorValue{Timestamp: ts, Dimension: d, Value: v})
}

func TestPush_SustainedWindowEmitsOneAlert(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())

	push(s, at(0, 0), sensor.Humidity, 80)
	push(s, at(0, 5), sensor.Humidity, 95)
	push(s, at(0, 30), sensor.Humidity, 95)
	push(s, at(1, 0), sensor.Humidity, 96)
	if got := len(rec.alerts()); got != 0 {
		t.Fatalf("no alert expected while still matching, got %d", got)
	}
	push(s, at(1, 10), sensor.Humidity, 85)
	push(s, at(1, 20), sensor.Humidity, 85)

	got := rec.alerts()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d: %+v", len(got), got)
	}
	a := got[0]
	if a.Rule != "wet" {
		t.Errorf("rule: got %q", a.Rule)
	}
	if !a.StartedAt.Equal(at(0, 5)) {
		t.Errorf("startedAt: want 00:05, got %s", a.StartedAt.Format("15:04"))
	}
	if !a.FinishedAt.Equal(at(1, 10)) {
		t.Errorf("finishedAt: want 01:10, got %s", a.FinishedAt.Format("15:04"))
	}
	if a.ID != "alert-1" {
		t.Errorf("id: got %q", a.ID)
	}
}

func TestPush_ShortWindowsDoNotAlert(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
	}{
		{"59 minutes", 59},
		{"exactly the duration", 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newSupervisor(t, humidityRule())
			start := at(0, 5)

			push(s, at(0, 0), sensor.Humidity, 80)
			push(s, start, sensor.Humidity, 95)
			push(s, start.Add(30*time.Minute), sensor.Humidity, 95)
			push(s, start.Add(time.Duration(tt.minutes)*time.Minute), sensor.Humidity, 85)
			push(s, at(3, 0), sensor.Humidity, 85)

			if got := rec.alerts(); len(got) != 0 {
				t.Errorf("expected no alerts, got %+v", got)
			}
			if s.OpenSituations() != 0 {
				t.Errorf("transient situation should be dropped, %d still open", s.OpenSituations())
			}
		})
	}
}

func TestPush_ReopenedWindowAlertsOnce(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(0, 30), sensor.Humidity, 85)
	push(s, at(1, 0), sensor.Humidity, 95)
	push(s, at(1, 45), sensor.Humidity, 97)
	push(s, at(2, 30), sensor.Humidity, 85)

	got := rec.alerts()
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if !got[0].StartedAt.Equal(at(1, 0)) {
		t.Errorf("second window should start at 01:00, got %s", got[0].StartedAt.Format("15:04"))
	}
	if !got[0].FinishedAt.Equal(at(2, 30)) {
		t.Errorf("finishedAt: got %s", got[0].FinishedAt.Format("15:04"))
	}
}

func TestPush_PreconditionGatesDependentRule(t *testing.T) {
	s, rec := newSupervisor(t, rules.Catalogue()...)

	// Development conditions hold for four hours before sporulation ever alerted.
	push(s, at(0, 0), sensor.Humidity, 50)
	for h := 0; h <= 3; h++ {
		push(s, at(h, 0), sensor.Temperature, 25)
	}
	push(s, at(4, 0), sensor.Temperature, 10)
	if got := rec.alerts(); len(got) != 0 {
		t.Fatalf("dependent rule must stay silent without its precondition, got %+v", got)
	}

	// Sporulation runs 05:00-06:30 while temperature is favourable. Its open
	// situation alone does not release development.
	push(s, at(5, 0), sensor.Temperature, 25)
	push(s, at(5, 0), sensor.Humidity, 95)
	push(s, at(6, 0), sensor.Temperature, 25)
	push(s, at(6, 30), sensor.Humidity, 80)

	// Development may only start on the push after sporulation alerted.
	push(s, at(6, 40), sensor.Temperature, 25)
	push(s, at(8, 0), sensor.Temperature, 26)
	push(s, at(9, 0), sensor.Temperature, 24)
	push(s, at(9, 10), sensor.Temperature, 10)

	got := rec.alerts()
	if len(got) != 2 {
		t.Fatalf("expected sporulation then development, got %+v", got)
	}
	if got[0].Rule != rules.NameOidiumSporulation {
		t.Errorf("first alert: got %q", got[0].Rule)
	}
	if !got[0].StartedAt.Equal(at(5, 0)) || !got[0].FinishedAt.Equal(at(6, 30)) {
		t.Errorf("sporulation window: %s-%s", got[0].StartedAt.Format("15:04"), got[0].FinishedAt.Format("15:04"))
	}
	if got[1].Rule != rules.NameOidiumDevelopment {
		t.Errorf("second alert: got %q", got[1].Rule)
	}
	if !got[1].StartedAt.Equal(at(6, 40)) || !got[1].FinishedAt.Equal(at(9, 10)) {
		t.Errorf("development window: %s-%s", got[1].StartedAt.Format("15:04"), got[1].FinishedAt.Format("15:04"))
	}

	snap := s.Snapshot()
	want := []string{rules.NameOidiumDevelopment, rules.NameOidiumSporulation}
	if !reflect.DeepEqual(snap.PastAlerts, want) {
		t.Errorf("past alerts: got %v, want %v", snap.PastAlerts, want)
	}
}

func TestPush_MissingDimensionNeverMatches(t *testing.T) {
	set := rules.Catalogue()
	s, rec := newSupervisor(t, set...)

	// Botrytis also needs temperature, which is never reported.
	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(8, 0), sensor.Humidity, 95)
	push(s, at(8, 30), sensor.Humidity, 50)

	for _, a := range rec.alerts() {
		if a.Rule == rules.NameBotrytis {
			t.Fatalf("botrytis should not match without temperature: %+v", a)
		}
	}
}

func TestPush_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var readings []sensor.SensorValue
	ts := day
	for i := 0; i < 2000; i++ {
		ts = ts.Add(time.Duration(1+rng.Intn(20)) * time.Minute)
		d := sensor.Humidity
		v := 80 + rng.Float64()*20
		if rng.Intn(2) == 0 {
			d = sensor.Temperature
			v = 10 + rng.Float64()*20
		}
		readings = append(readings, sensor.SensorValue{Timestamp: ts, Dimension: d, Value: v})
	}

	replay := func() []alerts.Alert {
		s, rec := newSupervisor(t, rules.Catalogue()...)
		for _, r := range readings {
			s.Push(r)
		}
		return rec.alerts()
	}

	first := replay()
	second := replay()
	if len(first) == 0 {
		t.Fatal("fixture should produce at least one alert")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("replay differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestPush_OutOfOrderReportsAnomalyAndKeepsWorking(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(1, 30), sensor.Humidity, 95)
	push(s, at(1, 0), sensor.Humidity, 95)

	anomalies := rec.anomalies()
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if !anomalies[0].Current.Equal(at(1, 30)) || !anomalies[0].Reading.Timestamp.Equal(at(1, 0)) {
		t.Errorf("anomaly: %+v", anomalies[0])
	}
	if rec.notes[0].IsAlert() {
		t.Error("anomaly must be tagged distinctly from alerts")
	}

	push(s, at(2, 0), sensor.Humidity, 96)
	push(s, at(2, 15), sensor.Humidity, 85)

	got := rec.alerts()
	if len(got) != 1 {
		t.Fatalf("engine should keep alerting after an anomaly, got %d alerts", len(got))
	}
	if !got[0].StartedAt.Equal(at(0, 0)) || !got[0].FinishedAt.Equal(at(2, 15)) {
		t.Errorf("window: %s-%s", got[0].StartedAt.Format("15:04"), got[0].FinishedAt.Format("15:04"))
	}
	if st := s.Stats(); st.Pushed != 5 || st.Anomalies != 1 || st.Alerts != 1 {
		t.Errorf("stats: %+v", st)
	}
}

func TestPush_OutOfOrderStillMerged(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(1, 0), sensor.Temperature, 18)
	push(s, at(0, 30), sensor.Humidity, 40)

	snap := s.Snapshot()
	if !snap.Environment.Timestamp.Equal(at(0, 30)) {
		t.Errorf("environment timestamp should follow the late reading, got %s", snap.Environment.Timestamp.Format("15:04"))
	}
	if v, ok := snap.Environment.Value(sensor.Humidity); !ok || v != 40 {
		t.Errorf("humidity should be merged, got %v (%v)", v, ok)
	}
	if len(snap.Open) != 0 {
		t.Errorf("the late value should have been evaluated and closed the match, open: %+v", snap.Open)
	}
	if len(rec.alerts()) != 0 {
		t.Errorf("30 minute window must not alert, got %+v", rec.alerts())
	}
	if len(rec.anomalies()) != 1 {
		t.Errorf("expected 1 anomaly, got %d", len(rec.anomalies()))
	}
}

func TestPush_AnomalyDeliveredBeforeAlertsOfSamePush(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(3, 0), sensor.Humidity, 95)
	push(s, at(2, 0), sensor.Humidity, 50)

	if len(rec.notes) != 2 {
		t.Fatalf("expected anomaly and alert, got %+v", rec.notes)
	}
	if rec.notes[0].Kind != alerts.KindAnomaly || rec.notes[1].Kind != alerts.KindAlert {
		t.Errorf("order: got %s then %s", rec.notes[0].Kind, rec.notes[1].Kind)
	}
}

func TestPush_SimultaneousEndsFollowRuleOrder(t *testing.T) {
	second := humidityRule()
	second.Name = "wet too"
	s, rec := newSupervisor(t, humidityRule(), second)

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(2, 0), sensor.Humidity, 50)

	got := rec.alerts()
	if len(got) != 2 || got[0].Rule != "wet" || got[1].Rule != "wet too" {
		t.Errorf("alerts should follow configured rule order, got %+v", got)
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	s, rec := newSupervisor(t, humidityRule())
	var late []alerts.Notification
	sub := s.Subscribe(func(n alerts.Notification) { late = append(late, n) })

	push(s, at(0, 0), sensor.Humidity, 95)
	push(s, at(2, 0), sensor.Humidity, 50)
	sub.Cancel()
	push(s, at(3, 0), sensor.Humidity, 95)
	push(s, at(5, 0), sensor.Humidity, 50)

	if len(rec.alerts()) != 2 {
		t.Errorf("first subscriber should see both alerts, got %d", len(rec.alerts()))
	}
	if len(late) != 1 {
		t.Errorf("cancelled subscriber should see only the first alert, got %d", len(late))
	}
}

func TestSnapshot_OpenSituations(t *testing.T) {
	s, _ := newSupervisor(t, rules.Catalogue()...)

	push(s, at(0, 0), sensor.Temperature, 17)
	push(s, at(0, 10), sensor.Humidity, 95)

	snap := s.Snapshot()
	if len(snap.Open) != 2 {
		t.Fatalf("expected sporulation and botrytis open, got %+v", snap.Open)
	}
	if snap.Open[0].Rule != rules.NameOidiumSporulation || snap.Open[1].Rule != rules.NameBotrytis {
		t.Errorf("open situations should follow rule order, got %+v", snap.Open)
	}
	if !snap.Open[0].StartedAt.Equal(at(0, 10)) {
		t.Errorf("startedAt: got %s", snap.Open[0].StartedAt.Format("15:04"))
	}
	if s.OpenSituations() != 2 {
		t.Errorf("OpenSituations: got %d", s.OpenSituations())
	}
}

func TestNew_RejectsInvalidRuleSets(t *testing.T) {
	self := humidityRule()
	self.Preconditions = []*rules.Rule{self}

	negative := humidityRule()
	negative.Duration = -time.Minute

	tests := []struct {
		name string
		set  []*rules.Rule
	}{
		{"empty", nil},
		{"self precondition", []*rules.Rule{self}},
		{"negative duration", []*rules.Rule{negative}},
		{"duplicate names", []*rules.Rule{humidityRule(), humidityRule()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.set)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, rules.ErrInvalidRule) {
				t.Errorf("error should wrap ErrInvalidRule: %v", err)
			}
			if s != nil {
				t.Error("no supervisor should be returned on error")
			}
		})
	}
}

func TestPush_ConcurrentPushersAreSerialised(t *testing.T) {
	s, rec := newSupervisor(t, rules.Catalogue()...)

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				d := sensor.Humidity
				if (w+i)%2 == 0 {
					d = sensor.Temperature
				}
				push(s, day.Add(time.Duration(i)*time.Minute), d, float64(10+(w*i)%90))
			}
		}(w)
	}
	wg.Wait()

	st := s.Stats()
	if st.Pushed != workers*perWorker {
		t.Errorf("pushed: want %d, got %d", workers*perWorker, st.Pushed)
	}
	if int(st.Anomalies) != len(rec.anomalies()) || int(st.Alerts) != len(rec.alerts()) {
		t.Errorf("counters disagree with delivered notifications: %+v vs %d/%d",
			st, len(rec.anomalies()), len(rec.alerts()))
	}
}
