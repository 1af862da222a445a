package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/report"
	"github.com/nixlim/growwatch/internal/sensor"
)

type fakeProvider struct {
	mu  sync.Mutex
	rep report.Report
}

func (f *fakeProvider) Report() report.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rep
}

func (f *fakeProvider) add(rule string, start time.Time, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rep.Rows = append(f.rep.Rows, report.RowFromAlert(alerts.Alert{
		ID:         "id-" + rule,
		Rule:       rule,
		StartedAt:  start,
		FinishedAt: start.Add(d),
	}))
}

var t0 = time.Date(2016, 8, 1, 0, 5, 0, 0, time.UTC)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func newTestModel(p *fakeProvider) Model {
	return NewModel(p, nil)
}

func TestModel_ShowsRows(t *testing.T) {
	p := &fakeProvider{}
	p.add("Botrytis", t0, 6*time.Hour+15*time.Minute)
	p.add("Oidium sporulation", t0.Add(8*time.Hour), 90*time.Minute)

	m := newTestModel(p)
	if got := len(m.table.Rows()); got != 2 {
		t.Fatalf("rows: want 2, got %d", got)
	}

	view := m.View()
	for _, want := range []string{"Botrytis", "Oidium sporulation", "06:15", "01:30", "2 alerts"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}
}

func TestModel_EmptyState(t *testing.T) {
	m := newTestModel(&fakeProvider{})
	if !strings.Contains(m.View(), "No alerts yet.") {
		t.Errorf("want empty-state message, got:\n%s", m.View())
	}

	// Details cannot open without rows.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.detail {
		t.Error("detail opened with no rows")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{"q", runes("q")},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown := false
			m := NewModel(&fakeProvider{}, nil, WithOnShutdown(func() { shutdown = true }))
			m, cmd := update(t, m, tt.msg)
			if !isQuit(cmd) {
				t.Error("expected tea.Quit")
			}
			if !m.quitting || !shutdown {
				t.Errorf("quitting=%v shutdown=%v", m.quitting, shutdown)
			}
			if m.View() != "" {
				t.Error("view should be empty after quitting")
			}
		})
	}
}

func TestModel_DetailAndBack(t *testing.T) {
	p := &fakeProvider{}
	p.add("Botrytis", t0, 7*time.Hour)
	p.add("Oidium sporulation", t0.Add(8*time.Hour), 2*time.Hour)
	m := newTestModel(p)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.detail {
		t.Fatal("enter should open details")
	}
	view := m.View()
	if !strings.Contains(view, "id-Oidium sporulation") || !strings.Contains(view, "02:00") {
		t.Errorf("detail view should describe the selected alert:\n%s", view)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.detail {
		t.Error("esc should close details")
	}
	if isQuit(cmd) {
		t.Error("esc in details must not quit")
	}
}

func TestModel_FilterCyclesRules(t *testing.T) {
	p := &fakeProvider{}
	p.add("Botrytis", t0, 7*time.Hour)
	p.add("Oidium sporulation", t0.Add(8*time.Hour), 2*time.Hour)
	p.add("Botrytis", t0.Add(24*time.Hour), 7*time.Hour)
	m := newTestModel(p)

	steps := []struct {
		filter string
		rows   int
	}{
		{"Botrytis", 2},
		{"Oidium sporulation", 1},
		{"", 3},
	}
	for _, step := range steps {
		m, _ = update(t, m, runes("f"))
		if m.ruleFilter != step.filter {
			t.Fatalf("filter: want %q, got %q", step.filter, m.ruleFilter)
		}
		if got := len(m.table.Rows()); got != step.rows {
			t.Errorf("filter %q: want %d rows, got %d", step.filter, step.rows, got)
		}
	}
}

func TestModel_TickRefreshes(t *testing.T) {
	p := &fakeProvider{}
	m := NewModel(p, nil, WithRefreshRate(time.Second))
	if m.Init() == nil {
		t.Fatal("Init should schedule a tick when a refresh rate is set")
	}

	p.add("Botrytis", t0, 7*time.Hour)
	p.mu.Lock()
	p.rep.Anomalies = append(p.rep.Anomalies, alerts.OrderingAnomaly{
		Reading: sensor.SensorValue{Timestamp: t0, Dimension: sensor.Humidity, Value: 91},
		Current: t0.Add(time.Minute),
	})
	p.mu.Unlock()

	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if got := len(m.table.Rows()); got != 1 {
		t.Errorf("rows after tick: want 1, got %d", got)
	}
	if !strings.Contains(m.View(), "1 out-of-order readings") {
		t.Errorf("status bar should count anomalies:\n%s", m.View())
	}
}

func TestModel_NoTickWithoutRefreshRate(t *testing.T) {
	m := newTestModel(&fakeProvider{})
	if m.Init() != nil {
		t.Error("Init should not tick without a refresh rate")
	}
}

func TestModel_WindowResize(t *testing.T) {
	m := newTestModel(&fakeProvider{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("size: got %dx%d", m.width, m.height)
	}
	cols := m.table.Columns()
	if cols[0].Width != 120-2*19-16-10 {
		t.Errorf("rule column width: got %d", cols[0].Width)
	}
}

func TestNextRule(t *testing.T) {
	names := []string{"A", "B"}
	tests := []struct{ current, want string }{
		{"", "A"},
		{"A", "B"},
		{"B", ""},
		{"gone", ""},
	}
	for _, tt := range tests {
		if got := nextRule(names, tt.current); got != tt.want {
			t.Errorf("nextRule(%q): want %q, got %q", tt.current, tt.want, got)
		}
	}
	if got := nextRule(nil, ""); got != "" {
		t.Errorf("nextRule with no names: got %q", got)
	}
}
