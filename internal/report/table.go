package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nixlim/growwatch/internal/loader"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

// RenderTable draws the alerts as a bordered table followed by one warning
// line per anomaly.
func RenderTable(rep Report, p *loader.TimeParser) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rep.Rows {
		t.Row(r.Cells(p)...)
	}

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	if len(rep.Rows) == 0 {
		b.WriteString(emptyStyle.Render("No disease condition was sustained long enough to alert."))
		b.WriteString("\n")
	}
	if len(rep.Rows) > 0 {
		for _, rs := range rep.Summary().Rules {
			b.WriteString(summaryStyle.Render(fmt.Sprintf("%s: %d alerts, %s total, longest %s",
				rs.Rule, rs.Alerts, FormatDuration(rs.Total), FormatDuration(rs.Longest))))
			b.WriteString("\n")
		}
	}
	for _, a := range rep.Anomalies {
		b.WriteString(warningStyle.Render(fmt.Sprintf("warning: out-of-order %s reading at %s (engine at %s)",
			a.Reading.Dimension, p.Format(a.Reading.Timestamp), p.Format(a.Current))))
		b.WriteString("\n")
	}
	return b.String()
}
