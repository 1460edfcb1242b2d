package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/rootd/internal/packaging"
)

var (
	installRestartTarget string
	installSocketGroup   string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install rootd as a socket-activated systemd service",
	Args:  cobra.NoArgs,
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installRestartTarget, "restart-target", "", "daemon restarted when root access is disabled")
	installCmd.Flags().StringVar(&installSocketGroup, "socket-group", "", "group owning the rootd socket")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(logLevel)

	cfg := packaging.InstallConfig{
		RestartTarget: installRestartTarget,
		SocketGroup:   installSocketGroup,
	}
	installer := packaging.NewInstaller(cfg, packaging.NewSystemdController(), packaging.NewRootChecker(), packaging.NewGroupEnsurer(), logger)

	if err := installer.Install(background(cmd)); err != nil {
		return fmt.Errorf("rootd install: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "rootd installed successfully")
	return nil
}
