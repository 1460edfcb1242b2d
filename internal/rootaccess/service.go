// Package rootaccess implements the root access toggle: the persisted state,
// the caller permission gate and the service that composes them.
package rootaccess

import (
	"context"
	"log/slog"
	"time"
)

// Controller sets process-wide properties and restarts dependent daemons.
type Controller interface {
	SetProperty(ctx context.Context, key, value string) error
	RestartService(ctx context.Context, name string) error
}

// Service gates toggle operations on caller role and triggers the disable
// side effect on enabled-to-disabled transitions.
type Service struct {
	store    *Store
	resolver IdentityResolver
	ctl      Controller
	metrics  *Metrics
	logger   *slog.Logger

	activeProperty    string
	restartTarget     string
	sideEffectTimeout time.Duration
}

// NewService creates a new Service. Config defaults are applied
// automatically.
func NewService(cfg Config, store *Store, resolver IdentityResolver, ctl Controller, metrics *Metrics, logger *slog.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:             store,
		resolver:          resolver,
		ctl:               ctl,
		metrics:           metrics,
		logger:            logger.With("component", "rootaccess"),
		activeProperty:    cfg.ActiveProperty,
		restartTarget:     cfg.RestartTarget,
		sideEffectTimeout: cfg.SideEffectTimeout,
	}
}

// SetEnabled changes the toggle. Only system callers are allowed. Persistence
// and side-effect failures are logged, not returned.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.Authorize(ctx, OpSetEnabled); err != nil {
		return err
	}
	s.store.Update(enabled, func(t Transition) {
		if t.Disabling() {
			s.onDisable(ctx)
		}
	})
	return nil
}

// GetEnabled returns the toggle. System and shell callers are allowed.
func (s *Service) GetEnabled(ctx context.Context) (bool, error) {
	if err := s.Authorize(ctx, OpGetEnabled); err != nil {
		return false, err
	}
	return s.store.Get(), nil
}

// Authorize checks that the caller in ctx may invoke op. Denials are logged
// at error level.
func (s *Service) Authorize(ctx context.Context, op Operation) error {
	role, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve caller identity", "op", op.Name, "error", err)
		role = RoleOther
	}
	err = CheckCaller(role, op)
	s.metrics.recordCall(op.Name, err)
	if err != nil {
		attrs := []any{"op", op.Name, "caller", role, "error", err}
		if cred, ok := CredentialsFromContext(ctx); ok {
			attrs = append(attrs, "uid", cred.UID, "pid", cred.PID)
		}
		s.logger.Error("permission denied", attrs...)
		return err
	}
	return nil
}

// onDisable clears the active property and restarts the dependent daemon.
// It outlives the caller's context: once the state is committed the side
// effect must run.
func (s *Service) onDisable(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()

	if err := s.ctl.SetProperty(ctx, s.activeProperty, "0"); err != nil {
		s.metrics.recordSideEffectFailure("set_property")
		s.logger.Error("failed to clear active property", "key", s.activeProperty, "error", err)
	}
	if err := s.ctl.RestartService(ctx, s.restartTarget); err != nil {
		s.metrics.recordSideEffectFailure("restart")
		s.logger.Error("failed to restart dependent daemon", "service", s.restartTarget, "error", err)
		return
	}
	s.logger.Info("dependent daemon restart requested", "service", s.restartTarget)
}
