package packaging

import "context"

// SystemdController abstracts systemd unit management for testability.
// All methods that modify state must be idempotent: repeating an operation
// that is already applied returns nil.
type SystemdController interface {
	// IsAvailable returns true if systemd is the running init system.
	IsAvailable() bool

	// DaemonReload reloads unit file changes.
	DaemonReload(ctx context.Context) error

	// Enable enables the named unit.
	Enable(ctx context.Context, unit string) error

	// Disable disables the named unit.
	Disable(ctx context.Context, unit string) error

	// Start starts the named unit and waits for the job to finish.
	Start(ctx context.Context, unit string) error

	// Stop stops the named unit. Returns nil if the unit is not running.
	Stop(ctx context.Context, unit string) error
}

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	// IsRoot returns true if the current process has root privileges.
	IsRoot() bool
}

// GroupEnsurer abstracts system group management for testability.
type GroupEnsurer interface {
	// EnsureGroup creates the named system group if it does not exist.
	// created reports whether a new group was added.
	EnsureGroup(ctx context.Context, name string) (created bool, err error)
}
