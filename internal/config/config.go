// Package config loads the rootd configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/rootd/internal/rootaccess"
	"github.com/plexsphere/rootd/internal/rootapi"
	"github.com/plexsphere/rootd/internal/sysprop"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultPath is the default configuration file location.
	DefaultPath = "/etc/rootd/config.yaml"
)

// Config is the top-level configuration for rootd. It aggregates all
// subsystem configurations and is populated from a YAML file via Parse.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// MetricsEnabled exposes GET /metrics on the socket for system callers.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	RootAccess rootaccess.Config `yaml:"root_access"`
	API        rootapi.Config    `yaml:"api"`
	Properties sysprop.Config    `yaml:"properties"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.RootAccess.ApplyDefaults()
	c.API.ApplyDefaults()
	c.Properties.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if err := c.RootAccess.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Properties.Validate(); err != nil {
		return err
	}
	return nil
}

// Parse reads a YAML configuration file. A missing file yields the
// defaults. Defaults are applied and the result validated.
func Parse(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
