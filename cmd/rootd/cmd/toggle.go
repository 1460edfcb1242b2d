package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/rootd/internal/rootapi"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show whether root access is enabled",
	Long:  "Ask the local daemon over its Unix socket whether root access is enabled.",
	Args:  cobra.NoArgs,
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:       "set <on|off>",
	Short:     "Enable or disable root access",
	Long:      "Change the root access setting. Only system callers are allowed.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
}

func runGet(cmd *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("rootd get: %w", err)
	}
	enabled, err := client.Enabled(background(cmd))
	if err != nil {
		return fmt.Errorf("rootd get: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), stateWord(enabled))
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	enabled, err := parseToggle(args[0])
	if err != nil {
		return fmt.Errorf("rootd set: %w", err)
	}
	client, err := newClient()
	if err != nil {
		return fmt.Errorf("rootd set: %w", err)
	}
	if err := client.SetEnabled(background(cmd), enabled); err != nil {
		return fmt.Errorf("rootd set: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "root access %s\n", stateWord(enabled))
	return nil
}

func newClient() (*rootapi.Client, error) {
	if socketPath != "" {
		return rootapi.NewClient(socketPath), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return rootapi.NewClient(cfg.API.SocketPath), nil
}

// parseToggle accepts on/off, true/false, enable/disable and 1/0.
func parseToggle(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "enable", "enabled", "1":
		return true, nil
	case "off", "false", "disable", "disabled", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q (want on or off)", s)
}

func stateWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
