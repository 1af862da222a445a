package rules

import (
	"time"

	"github.com/nixlim/growwatch/internal/sensor"
)

// Built-in rule names.
const (
	NameOidiumSporulation = "Oidium sporulation"
	NameOidiumDevelopment = "Oidium development"
	NameBotrytis          = "Botrytis"
)

// Catalogue returns a fresh copy of the built-in disease rules, used when no
// rules are configured. Oidium development only matters once sporulation
// has already been reported.
func Catalogue() []*Rule {
	sporulation := &Rule{
		Name:     NameOidiumSporulation,
		Duration: 60 * time.Minute,
		Expressions: []Expression{
			{Dimension: sensor.Humidity, Operator: GreaterThan, Value: 90},
		},
	}
	botrytis := &Rule{
		Name:     NameBotrytis,
		Duration: 360 * time.Minute,
		Expressions: []Expression{
			{Dimension: sensor.Humidity, Operator: GreaterThan, Value: 90},
			{Dimension: sensor.Temperature, Operator: GreaterThan, Value: 15},
			{Dimension: sensor.Temperature, Operator: LesserThan, Value: 20},
		},
	}
	development := &Rule{
		Name:     NameOidiumDevelopment,
		Duration: 120 * time.Minute,
		Expressions: []Expression{
			{Dimension: sensor.Temperature, Operator: GreaterThan, Value: 20},
			{Dimension: sensor.Temperature, Operator: LesserThan, Value: 30},
		},
		Preconditions: []*Rule{sporulation},
	}
	return []*Rule{sporulation, botrytis, development}
}

// Lookup returns the rule named name from set, or nil.
func Lookup(set []*Rule, name string) *Rule {
	for _, r := range set {
		if r != nil && r.Name == name {
			return r
		}
	}
	return nil
}
