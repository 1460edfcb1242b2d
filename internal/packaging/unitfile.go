package packaging

import (
	"fmt"
	"path/filepath"
)

// GenerateServiceUnit produces the systemd service unit for rootd.
// It calls cfg.ApplyDefaults() to fill in zero-valued fields before generating the output.
func GenerateServiceUnit(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=rootd root access toggle
Requires=%s
After=%s

[Service]
Type=notify
ExecStart=%s serve --config %s
Restart=on-failure
RestartSec=2s
NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=true
PrivateTmp=true
ReadWritePaths=%s %s

[Install]
WantedBy=multi-user.target
`, cfg.SocketUnit(), cfg.SocketUnit(), cfg.BinaryPath, cfg.ConfigPath(), cfg.StateDir, cfg.RunDir)
}

// GenerateSocketUnit produces the systemd socket unit that publishes the
// rootd endpoint before the daemon starts.
func GenerateSocketUnit(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=rootd root access toggle socket

[Socket]
ListenStream=%s
SocketMode=0660
SocketUser=root
SocketGroup=%s
RemoveOnStop=true

[Install]
WantedBy=sockets.target
`, cfg.SocketPath(), cfg.SocketGroup)
}

// GenerateDefaultConfig produces a minimal default config.yaml for rootd.
func GenerateDefaultConfig(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	restartLine := "# restart_target: adbd"
	if cfg.RestartTarget != "" {
		restartLine = "restart_target: " + cfg.RestartTarget
	}

	return fmt.Sprintf(`# rootd configuration
log_level: info
metrics_enabled: false

root_access:
  state_dir: %s
  %s
  system_uids: [0]
  # Non-root uids listed here must also be members of socket_group,
  # otherwise the socket mode rejects them before they are identified.
  # shell_uids: []
  shell_group: %s

api:
  socket_path: %s
  socket_group: %s

properties:
  property_dir: %s
`, cfg.StateDir, restartLine, cfg.SocketGroup, cfg.SocketPath(), cfg.SocketGroup, filepath.Join(cfg.RunDir, "properties"))
}
