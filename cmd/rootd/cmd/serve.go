package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/plexsphere/rootd/internal/config"
	"github.com/plexsphere/rootd/internal/rootaccess"
	"github.com/plexsphere/rootd/internal/rootapi"
	"github.com/plexsphere/rootd/internal/sysprop"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the root access daemon",
	Long: "Load the persisted root access setting, publish the local socket and\n" +
		"serve toggle requests until terminated.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("rootd serve: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting rootd", "version", buildVersion)

	srv, err := buildServer(cfg, sysprop.NewSystemdRestarter(cfg.Properties, nil, logger), prometheus.NewRegistry(), logger)
	if err != nil {
		return fmt.Errorf("rootd serve: %w", err)
	}

	// An unpublished endpoint is useless; refuse to run without it.
	if err := srv.Listen(); err != nil {
		logger.Error("could not register rootd service", "error", err)
		return fmt.Errorf("rootd serve: %w", err)
	}

	ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("rootd serve: %w", err)
	}

	logger.Info("rootd stopped")
	return nil
}

// buildServer assembles the toggle service and its endpoint.
func buildServer(cfg *config.Config, restarter sysprop.Restarter, reg *prometheus.Registry, logger *slog.Logger) (*rootapi.Server, error) {
	metrics, err := rootaccess.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store := rootaccess.NewStore(rootaccess.NewFilePersister(cfg.RootAccess.StateDir), metrics, logger)
	resolver := rootaccess.NewUIDResolver(cfg.RootAccess, rootaccess.OSGroupChecker{})
	ctl := sysprop.NewSystemController(sysprop.NewFileStore(cfg.Properties.PropertyDir), restarter, logger)
	svc := rootaccess.NewService(cfg.RootAccess, store, resolver, ctl, metrics, logger)

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	handler := rootapi.NewHandler(svc, metricsHandler, logger)
	return rootapi.NewServer(cfg.API, handler, logger), nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// background returns the command context, or Background when the command
// runs outside Execute.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
