//go:build linux

package rootapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/plexsphere/rootd/internal/rootaccess"
)

// GetPeerCredentials extracts peer credentials from a Unix socket connection
// using the SO_PEERCRED socket option. Returns an error if the connection
// is not a Unix socket or the credentials cannot be retrieved.
func GetPeerCredentials(conn net.Conn) (*rootaccess.Credentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("rootapi: peercred: not a Unix socket connection")
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("rootapi: peercred: get syscall conn: %w", err)
	}
	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, fmt.Errorf("rootapi: peercred: control: %w", err)
	}
	if credErr != nil {
		return nil, fmt.Errorf("rootapi: peercred: getsockopt SO_PEERCRED: %w", credErr)
	}
	return &rootaccess.Credentials{
		PID: cred.Pid,
		UID: cred.Uid,
		GID: cred.Gid,
	}, nil
}

// connContextWithPeerCred returns a ConnContext function for http.Server
// that attaches the peer credentials of every connection to its context.
// Connections whose credentials cannot be read carry none and resolve to
// the least privileged role.
func connContextWithPeerCred(logger *slog.Logger) func(ctx context.Context, c net.Conn) context.Context {
	return func(ctx context.Context, c net.Conn) context.Context {
		cred, err := GetPeerCredentials(c)
		if err != nil {
			logger.Warn("failed to get peer credentials", "error", err)
			return ctx
		}
		return rootaccess.WithCredentials(ctx, cred)
	}
}

// SetSocketPermissions sets ownership and permissions on the Unix socket file.
// If the group exists, the socket is chowned to root:group with mode 0660.
// If the group does not exist, the socket gets mode 0666 and a warning is
// logged; authorization still happens per call on the peer uid.
func SetSocketPermissions(socketPath, group string, logger *slog.Logger) error {
	grp, err := user.LookupGroup(group)
	if err != nil {
		logger.Warn("socket group not found, using permissive socket permissions",
			"group", group,
			"error", err,
		)
		return os.Chmod(socketPath, 0666)
	}
	gid, err := strconv.Atoi(grp.Gid)
	if err != nil {
		return fmt.Errorf("rootapi: parse gid: %w", err)
	}
	if err := os.Chown(socketPath, 0, gid); err != nil {
		return fmt.Errorf("rootapi: chown socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("rootapi: chmod socket: %w", err)
	}
	return nil
}

// applySocketPermissions sets socket ownership and permissions on Linux.
func applySocketPermissions(socketPath, group string, logger *slog.Logger) {
	if err := SetSocketPermissions(socketPath, group, logger); err != nil {
		logger.Warn("failed to set socket permissions", "error", err)
	}
}
