package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nixlim/growwatch/internal/ingest"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/receiver"
	"github.com/nixlim/growwatch/internal/tui"
)

const shutdownTimeout = 5 * time.Second

func runServe(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("serve", stderr)
	var (
		common     commonFlags
		listen     string
		readingLog string
		withTUI    bool
	)
	common.register(fs)
	fs.StringVar(&listen, "listen", "", "address to listen on (default from configuration)")
	fs.StringVar(&readingLog, "reading-log", "", "append every received reading as JSONL to this file")
	fs.BoolVar(&withTUI, "tui", false, "show the live alert table while serving")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := common.loadConfig(stderr)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Receiver.ListenAddr = listen
	}

	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	opts := []receiver.Option{receiver.WithHistory(a.store)}
	if readingLog != "" {
		f, err := os.OpenFile(readingLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open reading log %q: %w", readingLog, err)
		}
		defer f.Close()
		opts = append(opts, receiver.WithReadingLogger(receiver.NewFileLogger(f)))
	}

	srv := receiver.NewServer(cfg.Receiver.ListenAddr, ingest.New(a.sup), a.sup, a.feed, opts...)
	if err := srv.Start(); err != nil {
		return err
	}
	stopServer := sync.OnceFunc(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log := logger.WithError(err)
			log.Warn().Msg("receiver shutdown")
		}
	})
	defer stopServer()

	if withTUI {
		return tui.Run(newServeModel(a, srv.Addr().String(), stopServer))
	}

	fmt.Fprintf(stdout, "growwatch: listening on %s\n", srv.Addr())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log := logger.WithComponent("serve")
	log.Info().Msg("shutting down")
	return nil
}

// newServeModel builds the live alert table. Quitting it runs stop so
// intake ends before the engine is closed.
func newServeModel(a *app, addr string, stop func()) tui.Model {
	return tui.NewModel(a.collector, a.parser,
		tui.WithRefreshRate(time.Second),
		tui.WithTitle(fmt.Sprintf("growwatch | %s", addr)),
		tui.WithOnShutdown(stop),
	)
}
