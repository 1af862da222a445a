package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dimension is an observed quantity of the grow house.
type Dimension string

// Dimension constants.
const (
	Temperature Dimension = "temperature"
	Humidity    Dimension = "humidity"
)

// ErrUnknownDimension is returned by ParseDimension for unsupported names.
var ErrUnknownDimension = errors.New("unknown dimension")

// Dimensions lists every supported dimension in a stable order.
func Dimensions() []Dimension {
	return []Dimension{Temperature, Humidity}
}

// Valid reports whether d is one of the supported dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case Temperature, Humidity:
		return true
	default:
		return false
	}
}

// ParseDimension converts a case-insensitive name into a Dimension.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

// SensorValue is a single reading reported by a sensor.
type SensorValue struct {
	Timestamp time.Time `json:"timestamp"`
	Dimension Dimension `json:"dimension"`
	Value     float64   `json:"value"`
}

// Environment is the latest known value per dimension and the time of the
// most recent update. A dimension has no entry until it has been observed.
type Environment struct {
	Timestamp time.Time
	values    map[Dimension]float64
}

// NewEnvironment returns an environment with no observed dimensions.
func NewEnvironment() Environment {
	return Environment{values: make(map[Dimension]float64)}
}

// Value returns the last observed value for d and whether one exists.
func (e Environment) Value(d Dimension) (float64, bool) {
	v, ok := e.values[d]
	return v, ok
}

// Merge records the reading as the latest value of its dimension and moves
// the environment timestamp to the reading's timestamp.
func (e *Environment) Merge(v SensorValue) {
	if e.values == nil {
		e.values = make(map[Dimension]float64)
	}
	e.Timestamp = v.Timestamp
	e.values[v.Dimension] = v.Value
}

// Clone returns a deep copy safe to hand out of the owning goroutine.
func (e Environment) Clone() Environment {
	c := Environment{Timestamp: e.Timestamp, values: make(map[Dimension]float64, len(e.values))}
	for d, v := range e.values {
		c.values[d] = v
	}
	return c
}

// Values returns a copy of the observed values.
func (e Environment) Values() map[Dimension]float64 {
	return e.Clone().values
}

// WithValues builds an environment from explicit values, mainly for tests
// and status rendering.
func WithValues(ts time.Time, values map[Dimension]float64) Environment {
	e := NewEnvironment()
	e.Timestamp = ts
	for d, v := range values {
		e.values[d] = v
	}
	return e
}

func (e Environment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp time.Time             `json:"timestamp"`
		Values    map[Dimension]float64 `json:"values"`
	}{
		Timestamp: e.Timestamp,
		Values:    e.Values(),
	})
}
