package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-tempo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tempo/batch"
	"github.com/RyanBlaney/sonido-tempo/logging"
	"github.com/RyanBlaney/sonido-tempo/transcode"
)

// DefaultFileName is looked up in the working directory when no path is given
const DefaultFileName = "sonido-tempo.yaml"

// Environment overrides, applied after the file is loaded
const (
	EnvLogLevel        = "SONIDO_TEMPO_LOG_LEVEL"
	EnvWorkers         = "SONIDO_TEMPO_WORKERS"
	EnvAutocorrelation = "SONIDO_TEMPO_AUTOCORRELATION"
)

// Config is the application configuration, loaded from YAML
type Config struct {
	LogLevel string                  `yaml:"log_level"` // debug, info, warn or error
	Analysis temporal.Config         `yaml:"analysis"`
	Decoder  transcode.DecoderConfig `yaml:"decoder"`
	Batch    batch.Config            `yaml:"batch"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Analysis: temporal.DefaultConfig(),
		Decoder:  *transcode.DefaultDecoderConfig(),
		Batch:    batch.DefaultConfig(),
	}
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, DefaultFileName is tried in the working directory and built-in
// defaults are used when it does not exist. Environment overrides are
// applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFileName); err != nil {
			if err := cfg.applyEnvOverrides(); err != nil {
				return nil, err
			}
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section, including the analysis parameters
func (c *Config) Validate() error {
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Decoder.Channel < -1 {
		return fmt.Errorf("decoder.channel must be -1 or a channel index, got %d", c.Decoder.Channel)
	}
	if c.Decoder.MaxDuration < 0 {
		return fmt.Errorf("decoder.max_duration must not be negative, got %s", c.Decoder.MaxDuration)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	return c.Analysis.Validate()
}

// Level returns the parsed log level, InfoLevel if unset or unknown
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

func (c *Config) applyEnvOverrides() error {
	if val, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	if val, ok := os.LookupEnv(EnvWorkers); ok {
		workers, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, val, err)
		}
		c.Batch.Workers = workers
	}

	if val, ok := os.LookupEnv(EnvAutocorrelation); ok {
		c.Analysis.Autocorrelation = strings.ToLower(strings.TrimSpace(val))
	}

	return nil
}
