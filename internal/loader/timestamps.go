package loader

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Paris must resolve on hosts without a zoneinfo database
)

// Timestamp defaults used by the lab exports.
const (
	DefaultLayout = "02/01/2006 15:04:05"
	DefaultZone   = "Europe/Paris"
)

// TimeParser parses local wall-clock timestamps in a fixed zone.
type TimeParser struct {
	layout string
	loc    *time.Location
}

// NewTimeParser builds a parser for layout in the named zone. Empty
// arguments fall back to DefaultLayout and DefaultZone.
func NewTimeParser(layout, zone string) (*TimeParser, error) {
	if layout == "" {
		layout = DefaultLayout
	}
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", zone, err)
	}
	return &TimeParser{layout: layout, loc: loc}, nil
}

// DefaultTimeParser returns the parser for the lab export format.
func DefaultTimeParser() *TimeParser {
	p, err := NewTimeParser(DefaultLayout, DefaultZone)
	if err != nil {
		// tzdata is embedded, so this only fails on a corrupt build.
		panic(err)
	}
	return p
}

// Parse converts s into an instant.
func (p *TimeParser) Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(p.layout, strings.TrimSpace(s), p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// Format renders t in the parser's zone and layout.
func (p *TimeParser) Format(t time.Time) string {
	return t.In(p.loc).Format(p.layout)
}

// Location returns the parser's zone.
func (p *TimeParser) Location() *time.Location {
	return p.loc
}
