// Package tui is an interactive alert browser built on bubbletea.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/report"
)

type tickMsg time.Time

// ReportProvider supplies the alerts to browse. report.Collector satisfies
// it, so the view follows a live engine as well as a finished replay.
type ReportProvider interface {
	Report() report.Report
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool

	provider ReportProvider
	parser   *loader.TimeParser
	title    string

	table     table.Model
	rows      []report.Row
	anomalies int

	ruleFilter string

	detail bool

	refreshRate time.Duration
	onShutdown  func()
}

type ModelOption func(*Model)

// WithRefreshRate makes the model poll its provider. Zero disables polling.
func WithRefreshRate(d time.Duration) ModelOption {
	return func(m *Model) { m.refreshRate = d }
}

func WithTitle(title string) ModelOption {
	return func(m *Model) { m.title = title }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func NewModel(provider ReportProvider, parser *loader.TimeParser, opts ...ModelOption) Model {
	if parser == nil {
		parser = loader.DefaultTimeParser()
	}

	t := table.New(
		table.WithColumns(columns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = selectedStyle
	t.SetStyles(styles)

	m := Model{
		keys:     DefaultKeyMap(),
		provider: provider,
		parser:   parser,
		title:    "growwatch",
		table:    t,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.table.KeyMap.LineUp = m.keys.Up
	m.table.KeyMap.LineDown = m.keys.Down
	m.refresh()
	return m
}

// columns sizes the table for a terminal width; zero means unknown.
func columns(width int) []table.Column {
	stamp := len(loader.DefaultLayout)
	rule := 22
	if width > 0 {
		rule = max(18, width-2*stamp-16-10)
	}
	return []table.Column{
		{Title: report.Headers[0], Width: rule},
		{Title: report.Headers[1], Width: stamp},
		{Title: report.Headers[2], Width: stamp},
		{Title: report.Headers[3], Width: 16},
	}
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	if m.refreshRate <= 0 {
		return nil
	}
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(3, msg.Height-6))
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Back):
		if m.detail {
			m.detail = false
			return m, nil
		}
		return m.quit()

	case key.Matches(msg, m.keys.Detail):
		if len(m.table.Rows()) > 0 {
			m.detail = !m.detail
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.ruleFilter = nextRule(m.rules(), m.ruleFilter)
		m.applyRows()
		m.table.SetCursor(0)
		return m, nil
	}

	if m.detail {
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.onShutdown != nil {
		m.onShutdown()
	}
	return m, tea.Quit
}

// refresh pulls the latest report from the provider.
func (m *Model) refresh() {
	if m.provider == nil {
		return
	}
	rep := m.provider.Report()
	m.rows = rep.Rows
	m.anomalies = len(rep.Anomalies)
	m.applyRows()
}

func (m *Model) applyRows() {
	visible := m.visibleRows()
	rows := make([]table.Row, len(visible))
	for i, r := range visible {
		rows[i] = r.Cells(m.parser)
	}
	m.table.SetRows(rows)
	if len(rows) == 0 {
		m.detail = false
	}
}

func (m Model) visibleRows() []report.Row {
	if m.ruleFilter == "" {
		return m.rows
	}
	var out []report.Row
	for _, r := range m.rows {
		if r.Rule == m.ruleFilter {
			out = append(out, r)
		}
	}
	return out
}

// rules returns the distinct rule names that have alerted, sorted.
func (m Model) rules() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range m.rows {
		if !seen[r.Rule] {
			seen[r.Rule] = true
			names = append(names, r.Rule)
		}
	}
	sort.Strings(names)
	return names
}

// nextRule cycles "" -> names[0] -> ... -> names[n-1] -> "".
func nextRule(names []string, current string) string {
	if current == "" {
		if len(names) == 0 {
			return ""
		}
		return names[0]
	}
	for i, n := range names {
		if n == current && i+1 < len(names) {
			return names[i+1]
		}
	}
	return ""
}

func (m Model) selected() (report.Row, bool) {
	visible := m.visibleRows()
	i := m.table.Cursor()
	if i < 0 || i >= len(visible) {
		return report.Row{}, false
	}
	return visible[i], true
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" " + m.title + " "))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("No alerts yet."))
		b.WriteString("\n")
	} else if m.detail {
		b.WriteString(m.renderDetail())
	} else {
		b.WriteString(panelBorderStyle.Render(m.table.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderDetail() string {
	row, ok := m.selected()
	if !ok {
		return ""
	}
	lines := []string{
		panelTitleStyle.Render(row.Rule),
		"",
		fmt.Sprintf("Alert ID:    %s", row.AlertID),
		fmt.Sprintf("Started at:  %s", m.parser.Format(row.StartedAt)),
		fmt.Sprintf("Finished at: %s", m.parser.Format(row.FinishedAt)),
		fmt.Sprintf("Duration:    %s", report.FormatDuration(row.Elapsed)),
	}
	return detailOverlayStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) renderStatusBar() string {
	filter := "all rules"
	if m.ruleFilter != "" {
		filter = m.ruleFilter
	}
	parts := []string{
		fmt.Sprintf("%d alerts", len(m.rows)),
		filter,
	}
	if m.anomalies > 0 {
		parts = append(parts, anomalyStyle.Render(fmt.Sprintf("%d out-of-order readings", m.anomalies)))
	}
	parts = append(parts, "f filter", "enter details", "q quit")
	return statusBarStyle.Render(strings.Join(parts, " | "))
}

// Run shows the browser until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
