package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nixlim/growwatch/internal/sensor"
)

// ErrMalformedRecord is returned when a CSV row cannot be turned into readings.
var ErrMalformedRecord = errors.New("malformed record")

// ReadSeries reads a single-dimension log: a header row, then rows of
// timestamp,value. Any further columns are ignored.
func ReadSeries(r io.Reader, dim sensor.Dimension, parser *TimeParser) ([]sensor.SensorValue, error) {
	var out []sensor.SensorValue
	err := eachRecord(r, 2, func(line int, rec []string) error {
		ts, err := parser.Parse(rec[0])
		if err != nil {
			return malformed(line, err)
		}
		v, err := parseValue(rec[1])
		if err != nil {
			return malformed(line, err)
		}
		out = append(out, sensor.SensorValue{Timestamp: ts, Dimension: dim, Value: v})
		return nil
	})
	return out, err
}

// ReadCombined reads a log carrying both dimensions per row:
// timestamp,humidity,temperature. Each row yields a humidity reading
// followed by a temperature reading with the same timestamp.
func ReadCombined(r io.Reader, parser *TimeParser) ([]sensor.SensorValue, error) {
	var out []sensor.SensorValue
	err := eachRecord(r, 3, func(line int, rec []string) error {
		ts, err := parser.Parse(rec[0])
		if err != nil {
			return malformed(line, err)
		}
		humidity, err := parseValue(rec[1])
		if err != nil {
			return malformed(line, err)
		}
		temperature, err := parseValue(rec[2])
		if err != nil {
			return malformed(line, err)
		}
		out = append(out,
			sensor.SensorValue{Timestamp: ts, Dimension: sensor.Humidity, Value: humidity},
			sensor.SensorValue{Timestamp: ts, Dimension: sensor.Temperature, Value: temperature},
		)
		return nil
	})
	return out, err
}

// eachRecord skips the header and calls fn for every row with at least
// minFields columns. line is 1-based and counts the header.
func eachRecord(r io.Reader, minFields int, fn func(line int, rec []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("reading header: %w", err)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return malformed(line, err)
		}
		if len(rec) < minFields {
			return malformed(line, fmt.Errorf("want %d columns, got %d", minFields, len(rec)))
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing value %q: %w", s, err)
	}
	return v, nil
}

func malformed(line int, err error) error {
	return fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
}
