package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// Config holds the CLI configuration.
type Config struct {
	LogLevel     string `toml:"log_level"`
	FixedSeed    uint64 `toml:"fixed_seed"`
	DatabasePath string `toml:"database_path"`
}

// DefaultConfig creates a configuration with default values. The fixed
// seed is what deterministic mode uses, so two runs on the same corpus
// with the same config print the same text.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "warn",
		FixedSeed:    20,
		DatabasePath: "./charkov.db",
	}
}

// LoadConfig reads the configuration from a TOML file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var buf bytes.Buffer
			if err = toml.NewEncoder(&buf).Encode(config); err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, &buf); err != nil {
				// Warn instead of failing, as the program can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = toml.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
