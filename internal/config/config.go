package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nixlim/growwatch/internal/loader"
)

type Config struct {
	Sources       []loader.Source    `toml:"sources,omitempty"`
	Rules         []RuleConfig       `toml:"rules,omitempty"`
	RulesFile     string             `toml:"rules_file,omitempty"`
	Time          TimeConfig         `toml:"time"`
	Remote        RemoteConfig       `toml:"remote"`
	Receiver      ReceiverConfig     `toml:"receiver"`
	Storage       StorageConfig      `toml:"storage"`
	Display       DisplayConfig      `toml:"display"`
	Kafka         KafkaConfig        `toml:"kafka"`
	Notifications NotificationConfig `toml:"notifications"`
	Logging       LoggingConfig      `toml:"logging"`
}

type TimeConfig struct {
	Layout string `toml:"layout"`
	Zone   string `toml:"zone"`
}

type RemoteConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxRetries     int `toml:"max_retries"`
	MinWaitMS      int `toml:"min_wait_ms"`
	MaxWaitMS      int `toml:"max_wait_ms"`
}

type ReceiverConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

type StorageConfig struct {
	DBPath               string `toml:"db_path"`
	RetentionDays        int    `toml:"retention_days"`
	SummaryRetentionDays int    `toml:"summary_retention_days"`
}

type DisplayConfig struct {
	EventBufferSize int    `toml:"event_buffer_size"`
	Format          string `toml:"format"`
}

// KafkaConfig enables the notification sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic"`
	QueueSize int      `toml:"queue_size"`
}

type NotificationConfig struct {
	SystemNotify bool `toml:"system_notify"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

func DefaultConfig() Config {
	return Config{
		Time: TimeConfig{
			Layout: loader.DefaultLayout,
			Zone:   loader.DefaultZone,
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			MinWaitMS:      500,
			MaxWaitMS:      10000,
		},
		Receiver: ReceiverConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Storage: StorageConfig{
			DBPath:               "~/.local/share/growwatch/alerts.db",
			RetentionDays:        30,
			SummaryRetentionDays: 365,
		},
		Display: DisplayConfig{
			EventBufferSize: 1000,
			Format:          "table",
		},
		Kafka: KafkaConfig{
			Topic:     "growwatch.notifications",
			QueueSize: 256,
		},
		Notifications: NotificationConfig{
			SystemNotify: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath is ~/.config/growwatch/config.toml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "growwatch", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the TOML file at path over the defaults. A missing file
// yields the defaults. A relative rules_file is resolved against the
// config file's directory.
func LoadFrom(path string) (*LoadResult, error) {
	if path == "" {
		return LoadFromString("")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadFromString("")
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	result, err := LoadFromString(string(data))
	if err != nil {
		return nil, err
	}
	if rf := result.Config.RulesFile; rf != "" && !filepath.IsAbs(rf) {
		result.Config.RulesFile = filepath.Join(filepath.Dir(path), rf)
	}
	return result, nil
}

// LoadFromString decodes data over the defaults. Keys that match no field
// are reported as warnings rather than errors.
func LoadFromString(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if strings.TrimSpace(data) == "" {
		return result, nil
	}

	md, err := toml.Decode(data, &result.Config)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for _, key := range md.Undecoded() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
	}
	sort.Strings(result.Warnings)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

func validate(cfg *Config) error {
	var errs []string

	for i, src := range cfg.Sources {
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sources[%d]: %v", i, err))
		}
	}
	for i, rc := range cfg.Rules {
		if err := rc.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("rules[%d]: %v", i, err))
		}
	}
	if len(cfg.Rules) > 0 && cfg.RulesFile != "" {
		errs = append(errs, "rules and rules_file are mutually exclusive")
	}

	if cfg.Time.Layout == "" {
		errs = append(errs, "time layout must not be empty")
	} else if _, err := loader.NewTimeParser(cfg.Time.Layout, cfg.Time.Zone); err != nil {
		errs = append(errs, fmt.Sprintf("time: %v", err))
	}

	if cfg.Remote.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("remote timeout_seconds must be positive, got %d", cfg.Remote.TimeoutSeconds))
	}
	if cfg.Remote.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("remote max_retries must not be negative, got %d", cfg.Remote.MaxRetries))
	}
	if cfg.Remote.MinWaitMS < 1 || cfg.Remote.MaxWaitMS < cfg.Remote.MinWaitMS {
		errs = append(errs, fmt.Sprintf("remote waits must satisfy 0 < min_wait_ms <= max_wait_ms, got %d and %d", cfg.Remote.MinWaitMS, cfg.Remote.MaxWaitMS))
	}

	if cfg.Receiver.ListenAddr == "" {
		errs = append(errs, "receiver listen_addr must not be empty")
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Storage.SummaryRetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage summary_retention_days must be positive, got %d", cfg.Storage.SummaryRetentionDays))
	}

	if cfg.Display.EventBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("event_buffer_size must be positive, got %d", cfg.Display.EventBufferSize))
	}
	switch strings.ToLower(cfg.Display.Format) {
	case "", "table", "json", "xlsx", "pdf", "tui":
	default:
		errs = append(errs, fmt.Sprintf("display format %q is not one of table, json, xlsx, pdf, tui", cfg.Display.Format))
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
		errs = append(errs, "kafka topic must be set when brokers are configured")
	}
	if cfg.Kafka.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("kafka queue_size must be positive, got %d", cfg.Kafka.QueueSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
