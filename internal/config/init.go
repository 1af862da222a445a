package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nixlim/growwatch/internal/rules"
)

const starterHeader = `# growwatch configuration.
#
# Add one [[sources]] table per sensor log, for example:
#
#   [[sources]]
#   kind = "file"            # or "http"
#   location = "logs/humidity.csv"
#   dimension = "humidity"   # or "temperature"
#
# The [[rules]] below are the built-in disease rules. Remove them to use
# the catalogue shipped with the binary, or point rules_file at a .toml or
# .yaml file instead.

`

// RuleConfigs converts engine rules back into their file form.
func RuleConfigs(set []*rules.Rule) []RuleConfig {
	out := make([]RuleConfig, len(set))
	for i, r := range set {
		rc := RuleConfig{
			Name:            r.Name,
			DurationMinutes: int(r.Duration.Minutes()),
			Preconditions:   r.PreconditionNames(),
		}
		for _, e := range r.Expressions {
			rc.Expressions = append(rc.Expressions, ExpressionConfig{
				Dimension: string(e.Dimension),
				Operator:  string(e.Operator),
				Value:     e.Value,
			})
		}
		out[i] = rc
	}
	return out
}

// WriteStarter writes a commented default configuration with the built-in
// rules to path. An existing file is left untouched and reported as not
// created.
func WriteStarter(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	cfg := DefaultConfig()
	cfg.Rules = RuleConfigs(rules.Catalogue())

	var buf bytes.Buffer
	buf.WriteString(starterHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return false, fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, fmt.Errorf("permission denied creating directory %s", dir)
		}
		return false, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("permission denied writing to %s", dir)
		}
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	tmpPath = ""
	return nil
}
