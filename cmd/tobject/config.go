package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/CTAG07/tobject/pkg/filters"
	"github.com/CTAG07/tobject/pkg/tobject"
	"github.com/natefinch/atomic"
)

// CLIConfig holds settings of the command-line driver itself.
type CLIConfig struct {
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`
	CacheSize    int    `json:"cache_size"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	CLI      *CLIConfig      `json:"cli_config"`
	Template *tobject.Config `json:"template_config"`
	Filters  *filters.Config `json:"filters_config"`
}

// DefaultCLIConfig creates a CLI configuration with default values.
func DefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		LogLevel:     "info",
		DatabasePath: "./data/tobject.db?_journal_mode=WAL&_busy_timeout=5000",
		CacheSize:    128,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	tmplConfig := tobject.DefaultConfig()
	filtersConfig := filters.DefaultConfig()
	config := &Config{
		CLI:      DefaultCLIConfig(),
		Template: &tmplConfig,
		Filters:  &filtersConfig,
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Defaults still work without the file.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Sections left out of the file, or set to null, fall back to defaults.
	if config.CLI == nil {
		config.CLI = DefaultCLIConfig()
	}
	if config.Template == nil {
		config.Template = &tmplConfig
	}
	if config.Filters == nil {
		config.Filters = &filtersConfig
	}
	return config, nil
}

// Logger builds the driver's logger from LogLevel. Unknown levels mean info.
func (c *CLIConfig) Logger(w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
