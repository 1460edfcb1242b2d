// Package packaging installs rootd as a socket-activated systemd service.
package packaging

import (
	"errors"
	"path/filepath"
)

// InstallConfig holds the configuration for packaging and installing rootd as a systemd service.
// It is built from CLI flags, never read from disk.
type InstallConfig struct {
	// BinaryPath is the path to install the rootd binary.
	// Default: /usr/local/bin/rootd
	BinaryPath string

	// ConfigDir is the configuration directory.
	// Default: /etc/rootd
	ConfigDir string

	// StateDir holds the persisted toggle.
	// Default: /var/lib/rootd
	StateDir string

	// RunDir holds the socket and the property files.
	// Default: /run/rootd
	RunDir string

	// UnitDir is where the service and socket units are written.
	// Default: /etc/systemd/system
	UnitDir string

	// ServiceName names both units: <name>.service and <name>.socket.
	// Default: rootd
	ServiceName string

	// SocketGroup owns the listening socket.
	// Default: rootd
	SocketGroup string

	// RestartTarget is written into the default config (optional).
	RestartTarget string
}

// DefaultBinaryPath is the default path to install the rootd binary.
const DefaultBinaryPath = "/usr/local/bin/rootd"

// DefaultConfigDir is the default configuration directory.
const DefaultConfigDir = "/etc/rootd"

// DefaultStateDir is the default state directory.
const DefaultStateDir = "/var/lib/rootd"

// DefaultRunDir is the default runtime directory.
const DefaultRunDir = "/run/rootd"

// DefaultUnitDir is the default systemd unit directory.
const DefaultUnitDir = "/etc/systemd/system"

// DefaultServiceName is the default systemd unit name.
const DefaultServiceName = "rootd"

// DefaultSocketGroup is the default socket group.
const DefaultSocketGroup = "rootd"

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.RunDir == "" {
		c.RunDir = DefaultRunDir
	}
	if c.UnitDir == "" {
		c.UnitDir = DefaultUnitDir
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SocketGroup == "" {
		c.SocketGroup = DefaultSocketGroup
	}
}

// Validate checks that required fields are set.
func (c *InstallConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("packaging: config: BinaryPath is required")
	}
	if c.ConfigDir == "" {
		return errors.New("packaging: config: ConfigDir is required")
	}
	if c.StateDir == "" {
		return errors.New("packaging: config: StateDir is required")
	}
	if c.RunDir == "" {
		return errors.New("packaging: config: RunDir is required")
	}
	if c.UnitDir == "" {
		return errors.New("packaging: config: UnitDir is required")
	}
	if c.ServiceName == "" {
		return errors.New("packaging: config: ServiceName is required")
	}
	return nil
}

// ServiceUnit returns the service unit name.
func (c *InstallConfig) ServiceUnit() string { return c.ServiceName + ".service" }

// SocketUnit returns the socket unit name.
func (c *InstallConfig) SocketUnit() string { return c.ServiceName + ".socket" }

// SocketPath returns the listening socket path.
func (c *InstallConfig) SocketPath() string {
	return filepath.Join(c.RunDir, c.ServiceName+".sock")
}

// ConfigPath returns the config file path.
func (c *InstallConfig) ConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}
