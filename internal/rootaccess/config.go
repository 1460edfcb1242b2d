package rootaccess

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the configuration for the root access toggle.
type Config struct {
	// StateDir is the directory holding the persisted toggle value.
	// Default: /var/lib/rootd
	StateDir string `yaml:"state_dir"`

	// ActiveProperty is the property cleared when root access is disabled.
	// Default: service.adb.root
	ActiveProperty string `yaml:"active_property"`

	// RestartTarget is the daemon restarted when root access is disabled.
	// Default: adbd
	RestartTarget string `yaml:"restart_target"`

	// SideEffectTimeout bounds the property write and daemon restart
	// issued on disable.
	// Default: 30s
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`

	// SystemUIDs are the peer uids resolved to the system role.
	// Default: [0]
	SystemUIDs []uint32 `yaml:"system_uids"`

	// ShellUIDs are the peer uids resolved to the shell role.
	ShellUIDs []uint32 `yaml:"shell_uids"`

	// ShellGroup grants the shell role to members of the named group.
	// It matches the socket group by default, so members can both connect
	// and read the toggle.
	// Default: rootd
	ShellGroup string `yaml:"shell_group"`
}

// DefaultStateDir is the default directory for the persisted toggle.
const DefaultStateDir = "/var/lib/rootd"

// StateFileName is the name of the file holding the toggle inside StateDir.
const StateFileName = "enabled"

// DefaultActiveProperty is the default "capability active" property key.
const DefaultActiveProperty = "service.adb.root"

// DefaultRestartTarget is the default dependent daemon.
const DefaultRestartTarget = "adbd"

// DefaultSideEffectTimeout is the default bound on disable side effects.
const DefaultSideEffectTimeout = 30 * time.Second

// DefaultShellGroup is the default group whose members act as shell.
const DefaultShellGroup = "rootd"

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.ActiveProperty == "" {
		c.ActiveProperty = DefaultActiveProperty
	}
	if c.RestartTarget == "" {
		c.RestartTarget = DefaultRestartTarget
	}
	if c.SideEffectTimeout == 0 {
		c.SideEffectTimeout = DefaultSideEffectTimeout
	}
	if c.SystemUIDs == nil {
		c.SystemUIDs = []uint32{0}
	}
	if c.ShellGroup == "" {
		c.ShellGroup = DefaultShellGroup
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return errors.New("rootaccess: config: StateDir is required")
	}
	if c.ActiveProperty == "" {
		return errors.New("rootaccess: config: ActiveProperty is required")
	}
	if c.RestartTarget == "" {
		return errors.New("rootaccess: config: RestartTarget is required")
	}
	if c.SideEffectTimeout <= 0 {
		return errors.New("rootaccess: config: SideEffectTimeout must be positive")
	}
	if len(c.SystemUIDs) == 0 {
		return errors.New("rootaccess: config: at least one system uid is required")
	}
	system := make(map[uint32]struct{}, len(c.SystemUIDs))
	for _, uid := range c.SystemUIDs {
		system[uid] = struct{}{}
	}
	for _, uid := range c.ShellUIDs {
		if _, ok := system[uid]; ok {
			return fmt.Errorf("rootaccess: config: uid %d listed as both system and shell", uid)
		}
	}
	return nil
}
