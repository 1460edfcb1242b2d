package packaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/rootd/internal/fsutil"
)

// Installer handles installing and uninstalling rootd as a systemd service.
type Installer struct {
	cfg     InstallConfig
	systemd SystemdController
	root    RootChecker
	groups  GroupEnsurer
	logger  *slog.Logger

	// executable resolves the running binary; replaced in tests.
	executable func() (string, error)
}

// NewInstaller creates a new Installer with defaults applied.
func NewInstaller(cfg InstallConfig, systemd SystemdController, root RootChecker, groups GroupEnsurer, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:        cfg,
		systemd:    systemd,
		root:       root,
		groups:     groups,
		logger:     logger.With("component", "packaging"),
		executable: os.Executable,
	}
}

// Install creates the socket group, copies the binary, writes the service
// and socket units plus a default config, then enables and starts the
// socket unit.
func (ins *Installer) Install(ctx context.Context) error {
	if err := ins.cfg.Validate(); err != nil {
		return err
	}
	if !ins.root.IsRoot() {
		return errors.New("packaging: install requires root privileges")
	}
	if !ins.systemd.IsAvailable() {
		return errors.New("packaging: systemd is not available")
	}

	// The socket unit cannot start if its SocketGroup does not resolve.
	created, err := ins.groups.EnsureGroup(ctx, ins.cfg.SocketGroup)
	if err != nil {
		return err
	}
	if created {
		ins.logger.Info("socket group created", "group", ins.cfg.SocketGroup)
	}

	dirs := []struct {
		path string
		perm os.FileMode
	}{
		{ins.cfg.ConfigDir, 0o755},
		{ins.cfg.StateDir, 0o700},
		{ins.cfg.RunDir, 0o755},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return fmt.Errorf("packaging: create directory %s: %w", d.path, err)
		}
		ins.logger.Info("directory created", "path", d.path, "perm", fmt.Sprintf("%04o", d.perm))
	}

	if err := ins.copyBinary(); err != nil {
		return err
	}

	configPath := ins.cfg.ConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := fsutil.WriteFileAtomic(configPath, []byte(GenerateDefaultConfig(ins.cfg)), 0o644, 0o755); err != nil {
			return fmt.Errorf("packaging: write config: %w", err)
		}
		ins.logger.Info("default config written", "path", configPath)
	} else if err == nil {
		ins.logger.Info("existing config preserved", "path", configPath)
	} else {
		return fmt.Errorf("packaging: stat config: %w", err)
	}

	units := []struct {
		name    string
		content string
	}{
		{ins.cfg.ServiceUnit(), GenerateServiceUnit(ins.cfg)},
		{ins.cfg.SocketUnit(), GenerateSocketUnit(ins.cfg)},
	}
	for _, u := range units {
		path := filepath.Join(ins.cfg.UnitDir, u.name)
		if err := fsutil.WriteFileAtomic(path, []byte(u.content), 0o644, 0o755); err != nil {
			return fmt.Errorf("packaging: write unit %s: %w", u.name, err)
		}
		ins.logger.Info("unit file written", "path", path)
	}

	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}
	ins.logger.Info("systemd daemon reloaded")

	socket := ins.cfg.SocketUnit()
	if err := ins.systemd.Enable(ctx, socket); err != nil {
		return fmt.Errorf("packaging: enable %s: %w", socket, err)
	}
	if err := ins.systemd.Start(ctx, socket); err != nil {
		return fmt.Errorf("packaging: start %s: %w", socket, err)
	}
	ins.logger.Info("socket unit enabled and started", "unit", socket)

	return nil
}

// Uninstall stops and removes both units and the binary. If purge is true,
// the state and config directories are also removed.
func (ins *Installer) Uninstall(ctx context.Context, purge bool) error {
	if !ins.root.IsRoot() {
		return errors.New("packaging: uninstall requires root privileges")
	}

	servicePath := filepath.Join(ins.cfg.UnitDir, ins.cfg.ServiceUnit())
	socketPath := filepath.Join(ins.cfg.UnitDir, ins.cfg.SocketUnit())
	if !exists(servicePath) && !exists(socketPath) {
		ins.logger.Info("rootd is not installed, nothing to do")
		return nil
	}

	// Socket first so it cannot re-activate the service.
	for _, unit := range []string{ins.cfg.SocketUnit(), ins.cfg.ServiceUnit()} {
		if err := ins.systemd.Stop(ctx, unit); err != nil {
			ins.logger.Info("stop unit", "unit", unit, "error", err)
		}
		if err := ins.systemd.Disable(ctx, unit); err != nil {
			ins.logger.Info("disable unit", "unit", unit, "error", err)
		}
	}

	for _, path := range []string{socketPath, servicePath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("packaging: remove unit file: %w", err)
		}
		ins.logger.Info("unit file removed", "path", path)
	}

	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}

	if err := os.Remove(ins.cfg.BinaryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("packaging: remove binary: %w", err)
	}
	ins.logger.Info("binary removed", "path", ins.cfg.BinaryPath)

	if purge {
		for _, dir := range []string{ins.cfg.StateDir, ins.cfg.ConfigDir} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("packaging: remove directory %s: %w", dir, err)
			}
			ins.logger.Info("directory removed", "path", dir)
		}
	}

	return nil
}

func (ins *Installer) copyBinary() error {
	srcPath, err := ins.executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable path: %w", err)
	}
	srcPath, err = filepath.EvalSymlinks(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: resolve symlinks: %w", err)
	}

	dstPath := ins.cfg.BinaryPath
	if srcPath == dstPath {
		ins.logger.Info("binary already at install path, skipping copy", "path", dstPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packaging: open source binary: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("packaging: create destination binary: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("packaging: copy binary: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("packaging: close destination binary: %w", err)
	}

	ins.logger.Info("binary installed", "src", srcPath, "dst", dstPath)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
