package sysprop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitRestarter is the subset of the systemd D-Bus connection used to
// restart units.
type UnitRestarter interface {
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	Close()
}

// DBusFactory opens a connection to systemd.
type DBusFactory func(ctx context.Context) (UnitRestarter, error)

// NewSystemDBus connects to the system instance of systemd.
func NewSystemDBus(ctx context.Context) (UnitRestarter, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SystemdRestarter restarts units through systemd's D-Bus API.
type SystemdRestarter struct {
	newConn DBusFactory
	mode    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSystemdRestarter creates a SystemdRestarter. A nil factory uses the
// system bus.
func NewSystemdRestarter(cfg Config, newConn DBusFactory, logger *slog.Logger) *SystemdRestarter {
	cfg.ApplyDefaults()
	if newConn == nil {
		newConn = NewSystemDBus
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemdRestarter{
		newConn: newConn,
		mode:    cfg.RestartMode,
		timeout: cfg.RestartTimeout,
		logger:  logger.With("component", "sysprop"),
	}
}

// RestartService queues a restart of the named unit and waits for the job
// to finish. A name without a unit suffix is treated as a service.
func (r *SystemdRestarter) RestartService(ctx context.Context, name string) error {
	unit := UnitName(name)

	conn, err := r.newConn(ctx)
	if err != nil {
		return fmt.Errorf("sysprop: connect to systemd: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan string, 1)
	jobID, err := conn.RestartUnitContext(ctx, unit, r.mode, done)
	if err != nil {
		return fmt.Errorf("sysprop: restart %s: %w", unit, err)
	}
	r.logger.Debug("restart job queued", "unit", unit, "job", jobID)

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("sysprop: restart %s: job finished with %q", unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sysprop: restart %s: %w", unit, ctx.Err())
	}
}

// UnitName appends ".service" to names that carry no unit type suffix.
func UnitName(name string) string {
	for _, suffix := range []string{".service", ".socket", ".target", ".timer", ".mount", ".path", ".scope", ".slice"} {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return name + ".service"
}
