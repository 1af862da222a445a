package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is wrapped by every rule-set validation failure.
var ErrInvalidRule = errors.New("invalid rule")

// ValidateSet checks that set can drive a supervisor: it must be non-empty,
// names must be unique, durations non-negative, every rule needs at least one
// well-formed expression, and preconditions must refer to other members of
// the set without forming a cycle. All problems are reported together.
func ValidateSet(set []*Rule) error {
	if len(set) == 0 {
		return fmt.Errorf("%w: rule set is empty", ErrInvalidRule)
	}

	var errs []string
	byName := make(map[string]*Rule, len(set))
	for i, r := range set {
		if r == nil {
			errs = append(errs, fmt.Sprintf("rule #%d is nil", i))
			continue
		}
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Sprintf("rule #%d has an empty name", i))
			continue
		}
		if _, dup := byName[r.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate rule name %q", r.Name))
			continue
		}
		byName[r.Name] = r
	}

	for _, r := range set {
		if r == nil || strings.TrimSpace(r.Name) == "" {
			continue
		}
		if r.Duration < 0 {
			errs = append(errs, fmt.Sprintf("rule %q has negative duration %s", r.Name, r.Duration))
		}
		if len(r.Expressions) == 0 {
			errs = append(errs, fmt.Sprintf("rule %q has no expressions", r.Name))
		}
		for j, e := range r.Expressions {
			if !e.Dimension.Valid() {
				errs = append(errs, fmt.Sprintf("rule %q expression #%d: unknown dimension %q", r.Name, j, e.Dimension))
			}
			if !e.Operator.Valid() {
				errs = append(errs, fmt.Sprintf("rule %q expression #%d: unknown operator %q", r.Name, j, e.Operator))
			}
		}
		for _, p := range r.Preconditions {
			switch {
			case p == nil:
				errs = append(errs, fmt.Sprintf("rule %q has a nil precondition", r.Name))
			case p == r || p.Name == r.Name:
				errs = append(errs, fmt.Sprintf("rule %q lists itself as a precondition", r.Name))
			case byName[p.Name] != p:
				errs = append(errs, fmt.Sprintf("rule %q precondition %q is not part of the rule set", r.Name, p.Name))
			}
		}
	}

	if len(errs) == 0 {
		if cycle := findCycle(set); cycle != nil {
			errs = append(errs, fmt.Sprintf("precondition cycle: %s", strings.Join(cycle, " -> ")))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(errs, "; "))
	}
	return nil
}

// findCycle returns the names along the first precondition cycle found, or
// nil when the precondition graph is acyclic.
func findCycle(set []*Rule) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(set))
	var path []string

	var visit func(r *Rule) []string
	visit = func(r *Rule) []string {
		switch state[r.Name] {
		case visiting:
			for i, name := range path {
				if name == r.Name {
					return append(append([]string{}, path[i:]...), r.Name)
				}
			}
			return []string{r.Name, r.Name}
		case done:
			return nil
		}
		state[r.Name] = visiting
		path = append(path, r.Name)
		for _, p := range r.Preconditions {
			if cycle := visit(p); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[r.Name] = done
		return nil
	}

	for _, r := range set {
		if cycle := visit(r); cycle != nil {
			return cycle
		}
	}
	return nil
}
