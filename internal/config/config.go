package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// Registry
	SearchLimit int `toml:"search_limit"`

	// Protocol
	MaxNameBytes int  `toml:"max_name_bytes"`
	MaxLineBytes int  `toml:"max_line_bytes"`
	StopOnError  bool `toml:"stop_on_error"`

	// Metrics
	MetricsEnable bool `toml:"metrics_enable"`

	// Logging
	LogLevel           string `toml:"log_level"`
	LogFile            string `toml:"log_file"`
	SlowlogThresholdMs int    `toml:"slowlog_threshold_ms"`
}

func DefaultConfig() *Config {
	return &Config{
		SearchLimit:        10,
		MaxNameBytes:       1024,
		MaxLineBytes:       4096,
		StopOnError:        false,
		MetricsEnable:      true,
		LogLevel:           "INFO",
		LogFile:            "",
		SlowlogThresholdMs: 50,
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Use defaults if config file doesn't exist
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that limits are usable and the log level is known.
func (c *Config) Validate() error {
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search_limit must be positive, got %d", c.SearchLimit)
	}
	if c.MaxNameBytes <= 0 {
		return fmt.Errorf("max_name_bytes must be positive, got %d", c.MaxNameBytes)
	}
	if c.MaxLineBytes < c.MaxNameBytes {
		return fmt.Errorf("max_line_bytes (%d) must be at least max_name_bytes (%d)", c.MaxLineBytes, c.MaxNameBytes)
	}
	if c.SlowlogThresholdMs < 0 {
		return fmt.Errorf("slowlog_threshold_ms must not be negative, got %d", c.SlowlogThresholdMs)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) SlowlogThreshold() time.Duration {
	return time.Duration(c.SlowlogThresholdMs) * time.Millisecond
}
