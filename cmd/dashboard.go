package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live view of the running daemon's key pool",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

var dashboardInterval time.Duration

func init() {
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "interval", tui.DefaultPollInterval, "Refresh interval")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	c, err := controlClient(cmd)
	if err != nil {
		return err
	}
	return tui.RunDashboard(c.Status, c.BaseURL(), dashboardInterval)
}
