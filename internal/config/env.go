package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every override variable.
const EnvPrefix = "GROWWATCH"

// envOverrides lists the settings that may come from the environment.
type envOverrides struct {
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	DBPath       string   `envconfig:"DB_PATH"`
	ListenAddr   string   `envconfig:"LISTEN_ADDR"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides cfg with GROWWATCH_* variables and re-validates it.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}

	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.DBPath != "" {
		cfg.Storage.DBPath = o.DBPath
	}
	if o.ListenAddr != "" {
		cfg.Receiver.ListenAddr = o.ListenAddr
	}
	if len(o.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = o.KafkaBrokers
	}

	return validate(cfg)
}
