package sysprop

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the configuration for the property and service controls.
type Config struct {
	// PropertyDir is the directory holding one file per property.
	// Default: /run/rootd/properties
	PropertyDir string `yaml:"property_dir"`

	// RestartMode is the systemd job mode used for restarts.
	// Default: replace
	RestartMode string `yaml:"restart_mode"`

	// RestartTimeout bounds how long a restart job may take to finish.
	// Default: 20s
	RestartTimeout time.Duration `yaml:"restart_timeout"`
}

// DefaultPropertyDir is the default property directory.
const DefaultPropertyDir = "/run/rootd/properties"

// DefaultRestartMode is the default systemd job mode.
const DefaultRestartMode = "replace"

// DefaultRestartTimeout is the default restart job timeout.
const DefaultRestartTimeout = 20 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PropertyDir == "" {
		c.PropertyDir = DefaultPropertyDir
	}
	if c.RestartMode == "" {
		c.RestartMode = DefaultRestartMode
	}
	if c.RestartTimeout == 0 {
		c.RestartTimeout = DefaultRestartTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.PropertyDir == "" {
		return errors.New("sysprop: config: PropertyDir is required")
	}
	switch c.RestartMode {
	case "replace", "fail", "isolate", "ignore-dependencies", "ignore-requirements":
	default:
		return fmt.Errorf("sysprop: config: invalid RestartMode %q", c.RestartMode)
	}
	if c.RestartTimeout <= 0 {
		return errors.New("sysprop: config: RestartTimeout must be positive")
	}
	return nil
}
