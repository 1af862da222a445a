package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/nixlim/growwatch/internal/config"
	"github.com/nixlim/growwatch/internal/loader"
	"github.com/nixlim/growwatch/internal/logger"
	"github.com/nixlim/growwatch/internal/sensor"
)

var errUsage = errors.New("usage error")

// commonFlags are accepted by every command that reads the configuration.
type commonFlags struct {
	configPath string
	logLevel   string
	console    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", config.DefaultPath(), "path to the TOML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the configuration")
	fs.BoolVar(&c.console, "console", false, "human readable logs instead of JSON")
}

// loadConfig reads the configuration, applies .env and GROWWATCH_*
// overrides, then initialises the global logger.
func (c *commonFlags) loadConfig(stderr io.Writer) (config.Config, error) {
	config.LoadDotEnv()

	result, err := config.LoadFrom(c.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	cfg := result.Config
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "growwatch: config warning: %s\n", w)
	}
	logger.Init(cfg.Logging.Level, stderr, c.console || cfg.Logging.Console)
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return errUsage
	}
	return nil
}

// sourceList collects repeatable -source dimension=location flags.
type sourceList []loader.Source

func (s *sourceList) String() string {
	parts := make([]string, len(*s))
	for i, src := range *s {
		parts[i] = src.String()
	}
	return strings.Join(parts, ", ")
}

func (s *sourceList) Set(v string) error {
	dim, location, ok := strings.Cut(v, "=")
	if !ok || location == "" {
		return fmt.Errorf("want dimension=location, got %q", v)
	}
	d, err := sensor.ParseDimension(dim)
	if err != nil {
		return err
	}
	*s = append(*s, loader.Source{Kind: kindOf(location), Location: location, Dimension: d})
	return nil
}

// combinedList collects repeatable -combined location flags.
type combinedList []loader.Source

func (c *combinedList) String() string {
	parts := make([]string, len(*c))
	for i, src := range *c {
		parts[i] = src.Location
	}
	return strings.Join(parts, ", ")
}

func (c *combinedList) Set(v string) error {
	if v == "" {
		return errors.New("empty location")
	}
	*c = append(*c, loader.Source{Kind: kindOf(v), Location: v, Combined: true})
	return nil
}

func kindOf(location string) loader.Kind {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return loader.KindHTTP
	}
	return loader.KindFile
}
