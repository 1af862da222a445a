package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/report"
	"github.com/nixlim/growwatch/internal/storage"
)

var errNoHistory = errors.New("no history database; set storage.db_path or GROWWATCH_DB_PATH")

func runHistory(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", stderr)
	var (
		common    commonFlags
		days      int
		rule      string
		format    string
		output    string
		summaries bool
	)
	common.register(fs)
	fs.IntVar(&days, "days", 7, "how many days back to look")
	fs.StringVar(&rule, "rule", "", "only alerts raised by this rule")
	fs.StringVar(&format, "format", "table", "output format: table, json, xlsx or pdf")
	fs.StringVar(&output, "output", "", "write the report to this file instead of stdout")
	fs.BoolVar(&summaries, "summaries", false, "list per-day totals instead of single alerts")
	if err := parse(fs, args); err != nil {
		return err
	}
	if days < 1 {
		fmt.Fprintf(stderr, "growwatch: -days must be positive, got %d\n", days)
		return errUsage
	}
	reportFormat, err := report.ParseFormat(format)
	if err != nil {
		fmt.Fprintf(stderr, "growwatch: %v\n", err)
		return errUsage
	}
	if (reportFormat == report.FormatXLSX || reportFormat == report.FormatPDF) && output == "" {
		fmt.Fprintf(stderr, "growwatch: %s output needs -output\n", reportFormat)
		return errUsage
	}

	cfg, err := common.loadConfig(stderr)
	if err != nil {
		return err
	}
	parser, err := loader.NewTimeParser(cfg.Time.Layout, cfg.Time.Zone)
	if err != nil {
		return err
	}

	store, persistent, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}
	defer store.Close()
	if !persistent {
		return errNoHistory
	}

	if summaries {
		return writeSummaries(stdout, reportFormat, store.QueryDailySummaries(days))
	}

	var rep report.Report
	for _, rec := range store.QueryAlertHistory(days, rule) {
		rep.Rows = append(rep.Rows, report.RowFromAlert(rec.Alert()))
	}
	for _, rec := range store.QueryAnomalies(days) {
		rep.Anomalies = append(rep.Anomalies, rec.Anomaly())
	}
	return writeReport(output, stdout, reportFormat, rep, parser)
}

var summaryHeaders = []string{"Date", "Rule", "Alerts", "Total duration"}

// writeSummaries prints daily totals as JSON or as a table. Spreadsheet and
// PDF exports only cover single alerts.
func writeSummaries(w io.Writer, format report.Format, rows []storage.DailySummary) error {
	switch format {
	case report.FormatJSON:
		if rows == nil {
			rows = []storage.DailySummary{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case report.FormatTable:
	default:
		return fmt.Errorf("summaries support table and json output, not %s", format)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(summaryHeaders...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range rows {
		t.Row(s.Date, s.Rule, strconv.Itoa(s.Alerts), report.FormatDuration(s.Duration()))
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}
