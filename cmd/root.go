package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/config"
	"github.com/firefly-engineering/keypool/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
	controlURL string
)

var rootCmd = &cobra.Command{
	Use:   "keypool",
	Short: "Credential-rotating API proxy",
	Long: `keypool aggregates many upstream API keys behind a single endpoint.

Requests to the proxy surface are forwarded upstream with a key chosen
round-robin from the pool. Keys answered with 401, 403 or 429 are retried
with another key and quarantined after repeated failures.

A separate control surface accepts new key lists and reports pool status.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs (and command results) in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&controlURL, "control-url", "", "Control surface URL (default: derived from control_listen)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
