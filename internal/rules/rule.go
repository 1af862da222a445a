package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/growwatch/internal/sensor"
)

// Operator is a strict comparison used by an Expression.
type Operator string

// Operator constants.
const (
	GreaterThan Operator = "gt"
	LesserThan  Operator = "lt"
)

// ErrUnknownOperator is returned by ParseOperator for unsupported operators.
var ErrUnknownOperator = errors.New("unknown operator")

// ParseOperator accepts the short form ("gt", "lt"), the symbol (">", "<")
// or the long form ("greater_than", "lesser_than", "less_than").
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gt", ">", "greater_than":
		return GreaterThan, nil
	case "lt", "<", "lesser_than", "less_than":
		return LesserThan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	return op == GreaterThan || op == LesserThan
}

// Symbol returns the mathematical symbol for op.
func (op Operator) Symbol() string {
	switch op {
	case GreaterThan:
		return ">"
	case LesserThan:
		return "<"
	default:
		return "?"
	}
}

// Expression is a single comparison of a dimension against a threshold.
type Expression struct {
	Dimension sensor.Dimension
	Operator  Operator
	Value     float64
}

// Holds evaluates the expression against env. A dimension that has never
// been observed makes the expression false.
func (e Expression) Holds(env sensor.Environment) bool {
	v, ok := env.Value(e.Dimension)
	if !ok {
		return false
	}
	switch e.Operator {
	case GreaterThan:
		return v > e.Value
	case LesserThan:
		return v < e.Value
	default:
		return false
	}
}

func (e Expression) String() string {
	return fmt.Sprintf("%s %s %g", e.Dimension, e.Operator.Symbol(), e.Value)
}

// Rule describes a condition that must hold continuously for Duration
// before it is reported. Preconditions must each have produced an alert
// before the rule is allowed to match at all.
//
// Rules are shared read-only between supervisors once built; Name is the
// rule's identity.
type Rule struct {
	Name          string
	Duration      time.Duration
	Expressions   []Expression
	Preconditions []*Rule
}

// Evaluate reports whether every expression holds against env.
func (r *Rule) Evaluate(env sensor.Environment) bool {
	for _, e := range r.Expressions {
		if !e.Holds(env) {
			return false
		}
	}
	return true
}

// Dimensions returns the distinct dimensions referenced by the rule.
func (r *Rule) Dimensions() []sensor.Dimension {
	seen := make(map[sensor.Dimension]bool, len(r.Expressions))
	var dims []sensor.Dimension
	for _, e := range r.Expressions {
		if !seen[e.Dimension] {
			seen[e.Dimension] = true
			dims = append(dims, e.Dimension)
		}
	}
	return dims
}

// PreconditionNames returns the names of the rule's preconditions.
func (r *Rule) PreconditionNames() []string {
	names := make([]string, 0, len(r.Preconditions))
	for _, p := range r.Preconditions {
		if p != nil {
			names = append(names, p.Name)
		}
	}
	return names
}

func (r *Rule) String() string {
	parts := make([]string, len(r.Expressions))
	for i, e := range r.Expressions {
		parts[i] = e.String()
	}
	s := fmt.Sprintf("%s: %s for > %s", r.Name, strings.Join(parts, " && "), r.Duration)
	if len(r.Preconditions) > 0 {
		s += fmt.Sprintf(" after [%s]", strings.Join(r.PreconditionNames(), ", "))
	}
	return s
}
