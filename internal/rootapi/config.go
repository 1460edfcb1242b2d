package rootapi

import (
	"errors"
	"time"
)

// Config holds the configuration for the local toggle endpoint.
type Config struct {
	// SocketPath is the path to the Unix domain socket.
	// Default: /run/rootd/rootd.sock
	SocketPath string `yaml:"socket_path"`

	// SocketGroup owns the socket file; members may connect.
	// Default: rootd
	SocketGroup string `yaml:"socket_group"`

	// ShutdownTimeout is the maximum time to wait for a graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultSocketPath is the default Unix domain socket path.
const DefaultSocketPath = "/run/rootd/rootd.sock"

// DefaultSocketGroup is the default socket group.
const DefaultSocketGroup = "rootd"

// DefaultShutdownTimeout is the default graceful shutdown timeout.
const DefaultShutdownTimeout = 5 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.SocketGroup == "" {
		c.SocketGroup = DefaultSocketGroup
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("rootapi: config: SocketPath is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("rootapi: config: ShutdownTimeout must be positive")
	}
	return nil
}
