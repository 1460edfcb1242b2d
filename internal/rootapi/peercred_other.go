//go:build !linux

package rootapi

import (
	"context"
	"log/slog"
	"net"
)

// applySocketPermissions is a no-op on non-Linux platforms.
func applySocketPermissions(_, _ string, _ *slog.Logger) {}

// connContextWithPeerCred returns nil on non-Linux platforms (no SO_PEERCRED).
// Every caller then resolves to the least privileged role.
func connContextWithPeerCred(_ *slog.Logger) func(ctx context.Context, c net.Conn) context.Context {
	return nil
}
