package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/sensor"
)

// Kind says where a source's bytes come from.
type Kind string

const (
	KindFile Kind = "file"
	KindHTTP Kind = "http"
)

// Source is one log to load. A combined source carries both dimensions per
// row and ignores Dimension.
type Source struct {
	Kind      Kind             `toml:"kind" yaml:"kind"`
	Location  string           `toml:"location" yaml:"location"`
	Dimension sensor.Dimension `toml:"dimension" yaml:"dimension"`
	Combined  bool             `toml:"combined" yaml:"combined"`
}

func (s Source) String() string {
	if s.Combined {
		return fmt.Sprintf("%s:%s (combined)", s.Kind, s.Location)
	}
	return fmt.Sprintf("%s:%s (%s)", s.Kind, s.Location, s.Dimension)
}

// Validate checks that the source can be loaded.
func (s Source) Validate() error {
	switch s.Kind {
	case KindFile, KindHTTP:
	default:
		return fmt.Errorf("source %q: unknown kind %q", s.Location, s.Kind)
	}
	if strings.TrimSpace(s.Location) == "" {
		return fmt.Errorf("source has an empty location")
	}
	if !s.Combined && !s.Dimension.Valid() {
		return fmt.Errorf("source %q: %w: %q", s.Location, sensor.ErrUnknownDimension, s.Dimension)
	}
	return nil
}

// Fetcher retrieves a remote log body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Loader turns sources into one time-ordered reading sequence.
type Loader struct {
	parser  *TimeParser
	fetcher Fetcher
}

// New creates a Loader. fetcher may be nil when no HTTP sources are used.
func New(parser *TimeParser, fetcher Fetcher) *Loader {
	if parser == nil {
		parser = DefaultTimeParser()
	}
	return &Loader{parser: parser, fetcher: fetcher}
}

// Load reads a single source.
func (l *Loader) Load(ctx context.Context, src Source) ([]sensor.SensorValue, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	r, err := l.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var readings []sensor.SensorValue
	if src.Combined {
		readings, err = ReadCombined(r, l.parser)
	} else {
		readings, err = ReadSeries(r, src.Dimension, l.parser)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src, err)
	}

	log := logger.WithComponent("loader")
	log.Debug().
		Str("source", src.String()).
		Int("readings", len(readings)).
		Msg("source loaded")
	return readings, nil
}

func (l *Loader) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	switch src.Kind {
	case KindHTTP:
		if l.fetcher == nil {
			return nil, fmt.Errorf("loading %s: no HTTP fetcher configured", src)
		}
		body, err := l.fetcher.Fetch(ctx, src.Location)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", src, err)
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	default:
		f, err := os.Open(src.Location)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", src, err)
		}
		return f, nil
	}
}

// LoadAll loads every source concurrently and merges the results into one
// sequence sorted by timestamp. Readings sharing a timestamp keep source
// order, then file order.
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]sensor.SensorValue, error) {
	results := make([][]sensor.SensorValue, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			readings, err := l.Load(gctx, src)
			if err != nil {
				return err
			}
			results[i] = readings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]sensor.SensorValue, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}
