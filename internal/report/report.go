// Package report renders alerts for people: a terminal table, JSON, and
// XLSX or PDF exports.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/events"
	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/stats"
)

// Column headers shared by every format.
var Headers = []string{"Disease condition", "Started at", "Finished at", "Duration (HH:mm)"}

// Format selects an output renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatXLSX, FormatPDF:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Row is one alert ready for display.
type Row struct {
	AlertID    string        `json:"alert_id,omitempty"`
	Rule       string        `json:"rule"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"-"`
}

// Cells returns the row formatted with p, in Headers order.
func (r Row) Cells(p *loader.TimeParser) []string {
	return []string{r.Rule, p.Format(r.StartedAt), p.Format(r.FinishedAt), FormatDuration(r.Elapsed)}
}

// RowFromAlert converts an alert into a Row.
func RowFromAlert(a alerts.Alert) Row {
	return Row{
		AlertID:    a.ID,
		Rule:       a.Rule,
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
		Elapsed:    a.Elapsed(),
	}
}

// FormatDuration renders d as HH:mm.
func FormatDuration(d time.Duration) string {
	return events.FormatElapsed(d)
}

// Report is everything a run produced.
type Report struct {
	Rows      []Row
	Anomalies []alerts.OrderingAnomaly
}

// Summary aggregates the report per rule.
func (rep Report) Summary() stats.Summary {
	as := make([]alerts.Alert, len(rep.Rows))
	for i, r := range rep.Rows {
		as[i] = alerts.Alert{ID: r.AlertID, Rule: r.Rule, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
	}
	return stats.Compute(as, rep.Anomalies)
}

// Collector is an engine listener that accumulates a Report.
type Collector struct {
	mu     sync.Mutex
	report Report
}

func NewCollector() *Collector {
	return &Collector{}
}

// Listen records n.
func (c *Collector) Listen(n alerts.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch n.Kind {
	case alerts.KindAlert:
		c.report.Rows = append(c.report.Rows, RowFromAlert(n.Alert))
	case alerts.KindAnomaly:
		if n.Anomaly != nil {
			c.report.Anomalies = append(c.report.Anomalies, *n.Anomaly)
		}
	}
}

// Report returns a copy of what has been collected so far.
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Report{
		Rows:      append([]Row(nil), c.report.Rows...),
		Anomalies: append([]alerts.OrderingAnomaly(nil), c.report.Anomalies...),
	}
}

// Write renders rep to w in the given format, using p for timestamps.
func Write(w io.Writer, format Format, rep Report, p *loader.TimeParser) error {
	if p == nil {
		p = loader.DefaultTimeParser()
	}

	switch format {
	case FormatTable, "":
		_, err := io.WriteString(w, RenderTable(rep, p))
		return err
	case FormatJSON:
		return RenderJSON(w, rep)
	case FormatXLSX:
		data, err := BuildXLSX(rep, p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatPDF:
		data, err := BuildPDF(rep, p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
