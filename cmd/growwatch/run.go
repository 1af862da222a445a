package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nixlim/growwatch/internal/config"
	"github.com/nixlim/growwatch/internal/ingest"
	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/remote"
	"github.com/nixlim/growwatch/internal/report"
	"github.com/nixlim/growwatch/internal/tui"
)

const formatTUI = "tui"

func runReplay(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("run", stderr)
	var (
		common    commonFlags
		sources   sourceList
		combined  combinedList
		format    string
		output    string
		noHistory bool
	)
	common.register(fs)
	fs.Var(&sources, "source", "sensor log as dimension=path or dimension=URL (repeatable)")
	fs.Var(&combined, "combined", "combined log with both dimensions per row, path or URL (repeatable)")
	fs.StringVar(&format, "format", "", "output format: table, json, xlsx, pdf or tui (default from configuration)")
	fs.StringVar(&output, "output", "", "write the report to this file instead of stdout")
	fs.BoolVar(&noHistory, "no-history", false, "do not record alerts in the history database")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := common.loadConfig(stderr)
	if err != nil {
		return err
	}

	srcs := cfg.Sources
	if len(sources) > 0 || len(combined) > 0 {
		srcs = append(append([]loader.Source(nil), sources...), combined...)
	}
	if len(srcs) == 0 {
		fmt.Fprintln(stderr, "growwatch: no sources; pass -source or -combined, or add [[sources]] to the configuration")
		return errUsage
	}

	if format == "" {
		format = cfg.Display.Format
	}
	format = strings.ToLower(format)
	var reportFormat report.Format
	if format != formatTUI {
		reportFormat, err = report.ParseFormat(format)
		if err != nil {
			fmt.Fprintf(stderr, "growwatch: %v\n", err)
			return errUsage
		}
		if (reportFormat == report.FormatXLSX || reportFormat == report.FormatPDF) && output == "" {
			fmt.Fprintf(stderr, "growwatch: %s output needs -output\n", reportFormat)
			return errUsage
		}
	}

	a, err := newApp(cfg, appOptions{noHistory: noHistory})
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readings, err := loader.New(a.parser, newRemoteClient(cfg.Remote)).LoadAll(ctx, srcs)
	if err != nil {
		return err
	}
	if _, err := ingest.New(a.sup).Replay(ctx, readings); err != nil {
		return fmt.Errorf("replay interrupted: %w", err)
	}

	if format == formatTUI {
		return tui.Run(tui.NewModel(a.collector, a.parser))
	}
	return writeReport(output, stdout, reportFormat, a.collector.Report(), a.parser)
}

func newRemoteClient(cfg config.RemoteConfig) *remote.Client {
	return remote.NewClient(
		&http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		remote.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			MinWait:    time.Duration(cfg.MinWaitMS) * time.Millisecond,
			MaxWait:    time.Duration(cfg.MaxWaitMS) * time.Millisecond,
		},
	)
}

// writeReport renders rep to path, or to stdout when path is empty.
func writeReport(path string, stdout io.Writer, format report.Format, rep report.Report, p *loader.TimeParser) error {
	if path == "" {
		return report.Write(stdout, format, rep, p)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, format, rep, p); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}
