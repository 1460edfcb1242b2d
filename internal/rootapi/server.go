// Package rootapi exposes the root access toggle over a local Unix socket.
// Callers are identified by the kernel-reported credentials of the peer.
package rootapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports service state to the init system.
type Notifier func(state string) error

// SystemdNotifier sends state through sd_notify. Outside systemd it does
// nothing.
func SystemdNotifier(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

// ListenerSource returns pre-opened listeners handed over by the init
// system, if any.
type ListenerSource func() ([]net.Listener, error)

// Server is the local toggle endpoint.
type Server struct {
	cfg       Config
	handler   http.Handler
	notify    Notifier
	listeners ListenerSource
	logger    *slog.Logger

	ln         net.Listener
	ownsSocket bool
}

// NewServer creates a new Server. Config defaults are applied automatically.
func NewServer(cfg Config, handler *Handler, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		handler:   handler.Mux(),
		notify:    SystemdNotifier,
		listeners: activation.Listeners,
		logger:    logger.With("component", "rootapi"),
	}
}

// SetNotifier replaces the readiness notifier.
func (s *Server) SetNotifier(n Notifier) {
	s.notify = n
}

// SetListenerSource replaces the socket activation source.
func (s *Server) SetListenerSource(src ListenerSource) {
	s.listeners = src
}

// Listen publishes the endpoint. A socket passed by systemd socket
// activation is adopted; otherwise the configured socket path is bound.
// Callers must treat an error as fatal.
func (s *Server) Listen() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.ln != nil {
		return errors.New("rootapi: already listening")
	}

	if s.listeners != nil {
		lns, err := s.listeners()
		if err != nil {
			return fmt.Errorf("rootapi: socket activation: %w", err)
		}
		for _, ln := range lns {
			if ln == nil {
				continue
			}
			if s.ln != nil {
				ln.Close()
				continue
			}
			s.ln = ln
		}
		if s.ln != nil {
			s.logger.Info("using socket-activated listener", "addr", s.ln.Addr().String())
			return nil
		}
	}

	// Remove stale socket.
	os.Remove(s.cfg.SocketPath)

	if dir := filepath.Dir(s.cfg.SocketPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("rootapi: create socket dir: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("rootapi: listen unix %s: %w", s.cfg.SocketPath, err)
	}
	applySocketPermissions(s.cfg.SocketPath, s.cfg.SocketGroup, s.logger)

	s.ln = ln
	s.ownsSocket = true
	return nil
}

// Serve handles calls until ctx is cancelled. Listen must have succeeded.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("rootapi: serve before listen")
	}

	srv := &http.Server{
		Handler:     s.handler,
		ConnContext: connContextWithPeerCred(s.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(s.ln); err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.logger.Info("server started", "addr", s.ln.Addr().String())
	if s.notify != nil {
		if err := s.notify(daemon.SdNotifyReady); err != nil {
			s.logger.Warn("readiness notification failed", "error", err)
		}
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		s.logger.Error("server error", "error", serveErr)
	}

	s.logger.Info("server shutting down")
	if s.notify != nil {
		_ = s.notify(daemon.SdNotifyStopping)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if serveErr == nil {
		serveErr = <-errCh
	}

	if s.ownsSocket {
		os.Remove(s.cfg.SocketPath)
	}
	s.ln = nil

	s.logger.Info("server stopped")

	if serveErr != nil {
		return fmt.Errorf("rootapi: serve: %w", serveErr)
	}
	return ctx.Err()
}

// Start publishes the endpoint and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
