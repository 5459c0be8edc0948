package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/client"
	"github.com/firefly-engineering/keypool/internal/config"
	"github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/logging"
)

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)

// loadConfig reads the config file. A missing file is only an error when
// --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	required := cmd.Flags().Changed("config")
	cfg, err := config.Load(configPath, required)
	if err != nil {
		return nil, errors.ConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// controlClient returns a client for --control-url, or for the control
// address in the config file.
func controlClient(cmd *cobra.Command) (*client.Client, error) {
	if controlURL != "" {
		return client.New(controlURL), nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.ControlURL()), nil
}
