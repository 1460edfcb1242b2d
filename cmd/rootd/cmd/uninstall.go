package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/rootd/internal/packaging"
)

var purge bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the rootd systemd units and binary",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&purge, "purge", false, "also remove state and config directories")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(logLevel)

	installer := packaging.NewInstaller(packaging.InstallConfig{}, packaging.NewSystemdController(), packaging.NewRootChecker(), packaging.NewGroupEnsurer(), logger)

	if err := installer.Uninstall(background(cmd), purge); err != nil {
		return fmt.Errorf("rootd uninstall: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "rootd uninstalled successfully")
	return nil
}
