// Package ingest feeds readings into the supervisor and keeps the engine
// metrics current. Both the batch replay and the live server go through it.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/metrics"
	"github.com/nixlim/growwatch/internal/sensor"
	"github.com/nixlim/growwatch/internal/supervisor"
)

// Engine is the part of the supervisor the ingestor drives.
type Engine interface {
	Push(reading sensor.SensorValue)
	OpenSituations() int
}

var _ Engine = (*supervisor.Supervisor)(nil)

// Ingestor pushes readings into an Engine one at a time.
type Ingestor struct {
	engine   Engine
	rejected atomic.Uint64
}

// New creates an Ingestor over engine.
func New(engine Engine) *Ingestor {
	return &Ingestor{engine: engine}
}

// Push validates and forwards a single reading. Readings with an unknown
// dimension or a zero timestamp are rejected and reported false.
func (i *Ingestor) Push(reading sensor.SensorValue) bool {
	if !reading.Dimension.Valid() || reading.Timestamp.IsZero() {
		i.rejected.Add(1)
		log := logger.WithComponent("ingest")
		log.Warn().
			Str("dimension", string(reading.Dimension)).
			Time("timestamp", reading.Timestamp).
			Msg("rejected reading")
		return false
	}

	start := time.Now()
	i.engine.Push(reading)
	metrics.PushDuration.Observe(time.Since(start).Seconds())
	metrics.ReadingsTotal.WithLabelValues(string(reading.Dimension)).Inc()
	metrics.OpenSituations.Set(float64(i.engine.OpenSituations()))
	return true
}

// Replay pushes readings in order until they run out or ctx is cancelled.
// It returns the number of readings accepted.
func (i *Ingestor) Replay(ctx context.Context, readings []sensor.SensorValue) (int, error) {
	log := logger.WithComponent("ingest")
	log.Info().Int("readings", len(readings)).Msg("replay started")

	accepted := 0
	for n, r := range readings {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return accepted, err
			}
		}
		if i.Push(r) {
			accepted++
		}
	}

	log.Info().
		Int("accepted", accepted).
		Int("rejected", len(readings)-accepted).
		Msg("replay finished")
	return accepted, nil
}

// Rejected returns how many readings were refused.
func (i *Ingestor) Rejected() uint64 {
	return i.rejected.Load()
}
