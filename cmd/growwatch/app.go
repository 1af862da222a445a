package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nixlim/growwatch/internal/alerts"
	"github.com/nixlim/growwatch/internal/config"
	"github.com/nixlim/growwatch/internal/events"
	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/metrics"
	"github.com/nixlim/growwatch/internal/report"
	"github.com/nixlim/growwatch/internal/sink"
	"github.com/nixlim/growwatch/internal/storage"
	"github.com/nixlim/growwatch/internal/supervisor"
)

// app holds the engine and every listener subscribed to it.
type app struct {
	cfg        config.Config
	parser     *loader.TimeParser
	sup        *supervisor.Supervisor
	collector  *report.Collector
	feed       *events.RingBuffer
	store      storage.Store
	persistent bool
	publisher  *sink.Publisher
	notifier   alerts.Notifier
}

type appOptions struct {
	// noHistory keeps alerts out of the configured database.
	noHistory bool
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	parser, err := loader.NewTimeParser(cfg.Time.Layout, cfg.Time.Zone)
	if err != nil {
		return nil, err
	}
	set, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	sup, err := supervisor.New(set)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		parser:    parser,
		sup:       sup,
		collector: report.NewCollector(),
		feed:      events.NewRingBuffer(cfg.Display.EventBufferSize),
	}

	storageCfg := cfg.Storage
	if opts.noHistory {
		storageCfg.DBPath = ""
	}
	a.store, a.persistent, err = storage.NewStore(storageCfg)
	if err != nil {
		return nil, fmt.Errorf("storage error: %w", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		w, err := sink.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = a.store.Close()
			return nil, err
		}
		a.publisher = sink.NewPublisher(w, cfg.Kafka.QueueSize)
	}

	sup.Subscribe(metrics.Observe)
	sup.Subscribe(a.collector.Listen)
	sup.Subscribe(a.feed.Listen)
	sup.Subscribe(alerts.PersisterListener(a.store))
	a.notifier = alerts.NewPlatformNotifier(cfg.Notifications.SystemNotify)
	sup.Subscribe(alerts.NotifierListener(a.notifier))
	if a.publisher != nil {
		sup.Subscribe(a.publisher.Listen)
	}

	log := logger.WithComponent("app")
	log.Info().
		Int("rules", len(set)).
		Bool("persistent", a.persistent).
		Bool("kafka", a.publisher != nil).
		Msg("engine ready")
	return a, nil
}

// close flushes the publisher and the store and waits for pending desktop
// notifications.
func (a *app) close() error {
	var errs []error
	if c, ok := a.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
		st := a.publisher.Stats()
		log := logger.WithComponent("app")
		log.Info().
			Uint64("sent", st.Sent).
			Uint64("failed", st.Failed).
			Uint64("dropped", st.Dropped).
			Msg("publisher closed")
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}

// closeApp closes a from a defer. The close error becomes the command's
// error unless the command already failed, in which case it is logged.
func closeApp(a *app, err *error) {
	cerr := a.close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = cerr
		return
	}
	log := logger.WithError(cerr)
	log.Warn().Msg("shutdown")
}
