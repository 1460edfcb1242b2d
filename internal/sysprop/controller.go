package sysprop

import (
	"context"
	"log/slog"
)

// Restarter restarts a named daemon.
type Restarter interface {
	RestartService(ctx context.Context, name string) error
}

// SystemController combines the property store and the daemon restarter.
type SystemController struct {
	props     *FileStore
	restarter Restarter
	logger    *slog.Logger
}

// NewSystemController creates a SystemController.
func NewSystemController(props *FileStore, restarter Restarter, logger *slog.Logger) *SystemController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemController{
		props:     props,
		restarter: restarter,
		logger:    logger.With("component", "sysprop"),
	}
}

func (c *SystemController) SetProperty(ctx context.Context, key, value string) error {
	if err := c.props.SetProperty(ctx, key, value); err != nil {
		return err
	}
	c.logger.Info("property set", "key", key, "value", value)
	return nil
}

func (c *SystemController) RestartService(ctx context.Context, name string) error {
	c.logger.Info("restarting service", "service", name)
	return c.restarter.RestartService(ctx, name)
}
