package packaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
)

// dbusSystemdController implements SystemdController over systemd's D-Bus API.
type dbusSystemdController struct{}

// NewSystemdController returns a SystemdController that talks to the system
// instance of systemd.
func NewSystemdController() SystemdController {
	return dbusSystemdController{}
}

func (dbusSystemdController) IsAvailable() bool {
	return util.IsRunningSystemd()
}

func (c dbusSystemdController) DaemonReload(ctx context.Context) error {
	return c.with(ctx, "daemon-reload", func(conn *dbus.Conn) error {
		return conn.ReloadContext(ctx)
	})
}

func (c dbusSystemdController) Enable(ctx context.Context, unit string) error {
	return c.with(ctx, "enable", func(conn *dbus.Conn) error {
		_, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true)
		return err
	})
}

func (c dbusSystemdController) Disable(ctx context.Context, unit string) error {
	return c.with(ctx, "disable", func(conn *dbus.Conn) error {
		_, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false)
		return err
	})
}

func (c dbusSystemdController) Start(ctx context.Context, unit string) error {
	return c.with(ctx, "start", func(conn *dbus.Conn) error {
		done := make(chan string, 1)
		if _, err := conn.StartUnitContext(ctx, unit, "replace", done); err != nil {
			return err
		}
		return waitJob(ctx, unit, done)
	})
}

func (c dbusSystemdController) Stop(ctx context.Context, unit string) error {
	return c.with(ctx, "stop", func(conn *dbus.Conn) error {
		done := make(chan string, 1)
		if _, err := conn.StopUnitContext(ctx, unit, "replace", done); err != nil {
			return err
		}
		return waitJob(ctx, unit, done)
	})
}

func (dbusSystemdController) with(ctx context.Context, op string, fn func(*dbus.Conn) error) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("packaging: systemd %s: connect: %w", op, err)
	}
	defer conn.Close()
	if err := fn(conn); err != nil {
		return fmt.Errorf("packaging: systemd %s: %w", op, err)
	}
	return nil
}

func waitJob(ctx context.Context, unit string, done <-chan string) error {
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("job for %s finished with %q", unit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// realRootChecker implements RootChecker using os.Getuid.
type realRootChecker struct{}

// NewRootChecker returns a RootChecker that checks the real process UID.
func NewRootChecker() RootChecker {
	return &realRootChecker{}
}

func (c *realRootChecker) IsRoot() bool {
	return os.Getuid() == 0
}

// osGroupEnsurer implements GroupEnsurer with the user database and groupadd.
type osGroupEnsurer struct{}

// NewGroupEnsurer returns a GroupEnsurer backed by the host's group database.
func NewGroupEnsurer() GroupEnsurer {
	return osGroupEnsurer{}
}

func (osGroupEnsurer) EnsureGroup(ctx context.Context, name string) (bool, error) {
	_, err := user.LookupGroup(name)
	if err == nil {
		return false, nil
	}
	var unknown user.UnknownGroupError
	if !errors.As(err, &unknown) {
		return false, fmt.Errorf("packaging: lookup group %s: %w", name, err)
	}
	out, err := exec.CommandContext(ctx, "groupadd", "--system", name).CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("packaging: groupadd %s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return true, nil
}
