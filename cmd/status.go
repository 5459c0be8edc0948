package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/health"
	"github.com/firefly-engineering/keypool/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool status of the running daemon",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the daemon is responsive",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := controlClient(cmd)
	if err != nil {
		return err
	}

	st, err := c.Status(cmd.Context())
	if err != nil {
		return errors.ControlError("status", err)
	}

	if jsonOutput {
		return printJSON(cmd, st)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(st))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := controlClient(cmd)
	if err != nil {
		return err
	}

	rep, err := c.Health(cmd.Context())
	if err != nil {
		return errors.ControlError("health", err)
	}

	if jsonOutput {
		return printJSON(cmd, rep)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", rep.Status)
	fmt.Fprintf(out, "Keys: %d total, %d available, %d quarantined\n",
		rep.Keys.Total, rep.Keys.Available, rep.Keys.Unavailable)
	fmt.Fprintf(out, "Uptime: %.0fs\n", rep.Uptime)

	switch rep.Status {
	case health.StatusEmpty:
		logWarning("No keys loaded; push some with 'keypool push-keys'")
	case health.StatusDegraded:
		logWarning("All keys are quarantined")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
