package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nixlim/growwatch/internal/rules"
	"github.com/nixlim/growwatch/internal/sensor"
)

// RuleConfig is the file form of a rule. Preconditions refer to other rules
// of the same file by name.
type RuleConfig struct {
	Name            string             `toml:"name" yaml:"name"`
	DurationMinutes int                `toml:"duration_minutes" yaml:"duration_minutes"`
	Expressions     []ExpressionConfig `toml:"expressions" yaml:"expressions"`
	Preconditions   []string           `toml:"preconditions" yaml:"preconditions"`
}

type ExpressionConfig struct {
	Dimension string  `toml:"dimension" yaml:"dimension"`
	Operator  string  `toml:"operator" yaml:"operator"`
	Value     float64 `toml:"value" yaml:"value"`
}

// validate checks the parts of a rule that do not depend on the rest of
// the set.
func (rc RuleConfig) validate() error {
	if strings.TrimSpace(rc.Name) == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if rc.DurationMinutes < 0 {
		return fmt.Errorf("rule %q: duration_minutes must not be negative, got %d", rc.Name, rc.DurationMinutes)
	}
	if len(rc.Expressions) == 0 {
		return fmt.Errorf("rule %q: at least one expression is required", rc.Name)
	}
	for _, e := range rc.Expressions {
		if _, err := sensor.ParseDimension(e.Dimension); err != nil {
			return fmt.Errorf("rule %q: %w", rc.Name, err)
		}
		if _, err := rules.ParseOperator(e.Operator); err != nil {
			return fmt.Errorf("rule %q: %w", rc.Name, err)
		}
	}
	return nil
}

type rulesFile struct {
	Rules []RuleConfig `toml:"rules" yaml:"rules"`
}

// LoadRulesFile reads rule definitions from a .toml, .yaml or .yml file.
func LoadRulesFile(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rf rulesFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &rf); err != nil {
			return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&rf); err != nil {
			return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("rules file %s: unsupported extension %q", path, filepath.Ext(path))
	}

	for i, rc := range rf.Rules {
		if err := rc.validate(); err != nil {
			return nil, fmt.Errorf("rules file %s: rules[%d]: %w", path, i, err)
		}
	}
	return rf.Rules, nil
}

// BuildRules turns file rules into engine rules, resolving preconditions by
// name. The result is checked with rules.ValidateSet.
func BuildRules(configs []RuleConfig) ([]*rules.Rule, error) {
	set := make([]*rules.Rule, len(configs))
	byName := make(map[string]*rules.Rule, len(configs))

	for i, rc := range configs {
		r := &rules.Rule{
			Name:     strings.TrimSpace(rc.Name),
			Duration: time.Duration(rc.DurationMinutes) * time.Minute,
		}
		for _, ec := range rc.Expressions {
			dim, err := sensor.ParseDimension(ec.Dimension)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rc.Name, err)
			}
			op, err := rules.ParseOperator(ec.Operator)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rc.Name, err)
			}
			r.Expressions = append(r.Expressions, rules.Expression{Dimension: dim, Operator: op, Value: ec.Value})
		}
		set[i] = r
		if _, dup := byName[r.Name]; !dup {
			byName[r.Name] = r
		}
	}

	for i, rc := range configs {
		for _, name := range rc.Preconditions {
			p, ok := byName[strings.TrimSpace(name)]
			if !ok {
				return nil, fmt.Errorf("%w: rule %q: precondition %q is not defined", rules.ErrInvalidRule, rc.Name, name)
			}
			set[i].Preconditions = append(set[i].Preconditions, p)
		}
	}

	if err := rules.ValidateSet(set); err != nil {
		return nil, err
	}
	return set, nil
}

// RuleSet returns the rules the engine should supervise: inline [[rules]],
// else the rules file, else the built-in catalogue.
func (c *Config) RuleSet() ([]*rules.Rule, error) {
	switch {
	case len(c.Rules) > 0:
		return BuildRules(c.Rules)
	case c.RulesFile != "":
		configs, err := LoadRulesFile(expandTilde(c.RulesFile))
		if err != nil {
			return nil, err
		}
		return BuildRules(configs)
	default:
		return rules.Catalogue(), nil
	}
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
