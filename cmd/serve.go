package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/keypool/internal/app"
	"github.com/firefly-engineering/keypool/internal/config"
	"github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy and control servers",
	Long: `Run the credential-rotating proxy.

Two HTTP surfaces are started:
  proxy    (default 127.0.0.1:5100)  GET /health, ANY /v1/*
  control  (default 127.0.0.1:5101)  POST /update-keys, GET /status,
                                     GET /health, GET /metrics

At startup the pool is seeded from the key cache in state_dir, or from
keys_command when the cache is empty. Keys pushed to /update-keys replace
the pool and are written back to the cache.

Send SIGHUP to reload keys from the cache file.`,
	RunE: runServe,
}

var (
	serveProxyListen    string
	serveControlListen  string
	serveUpstream       string
	serveStateDir       string
	serveAuditLog       string
	serveLogFile        string
	serveKeysCommand    string
	serveMaxAttempts    int
	serveAttemptTimeout time.Duration
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveProxyListen, "proxy-listen", config.DefaultProxyListen, "Proxy surface listen address")
	f.StringVar(&serveControlListen, "control-listen", config.DefaultControlListen, "Control surface listen address")
	f.StringVar(&serveUpstream, "upstream", config.DefaultUpstreamURL, "Upstream API base URL")
	f.StringVar(&serveStateDir, "state-dir", config.DefaultStateDir, "Directory holding the key cache")
	f.StringVar(&serveAuditLog, "audit-log", "", "Path to audit log file")
	f.StringVar(&serveLogFile, "log-file", "", "Also write daemon logs to this file")
	f.StringVar(&serveKeysCommand, "keys-command", "", "Command printing keys, run when the cache is empty")
	f.IntVar(&serveMaxAttempts, "max-attempts", config.DefaultMaxAttempts, "Upstream attempts per request")
	f.DurationVar(&serveAttemptTimeout, "attempt-timeout", 0, "Max wait for upstream response headers (0 = none)")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overrides cfg with every flag set on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("proxy-listen") {
		cfg.ProxyListen = serveProxyListen
	}
	if f.Changed("control-listen") {
		cfg.ControlListen = serveControlListen
	}
	if f.Changed("upstream") {
		cfg.UpstreamURL = serveUpstream
	}
	if f.Changed("state-dir") {
		cfg.StateDir = serveStateDir
	}
	if f.Changed("audit-log") {
		cfg.AuditLog = serveAuditLog
	}
	if f.Changed("log-file") {
		cfg.LogFile = serveLogFile
	}
	if f.Changed("keys-command") {
		cfg.KeysCommand = serveKeysCommand
	}
	if f.Changed("max-attempts") {
		cfg.MaxAttempts = serveMaxAttempts
	}
	if f.Changed("attempt-timeout") {
		cfg.AttemptTimeout = serveAttemptTimeout
	}
	if err := cfg.Validate(); err != nil {
		return errors.ConfigError("invalid configuration", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	if cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return errors.ConfigError("failed to open log file", err)
		}
		defer f.Close()
		logging.Setup(verbose, jsonOutput, io.MultiWriter(os.Stderr, f))
	}

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLogger(logging.Logger))
	if err != nil {
		return err
	}
	defer a.Close()

	// Handle SIGHUP for key reload
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)
	go func() {
		for range hupCh {
			logging.Info("reloading API keys from cache")
			n, err := a.Reload()
			if err != nil {
				logging.Warn("failed to reload keys", "error", err)
				continue
			}
			logging.Info("reloaded API keys", "count", n)
		}
	}()

	logInfo("Proxy:    %s", cfg.ProxyListen)
	logInfo("Control:  %s", cfg.ControlListen)
	logInfo("Upstream: %s", cfg.UpstreamURL)
	logInfo("Cache:    %s", a.Cache.Path())
	if cfg.AuditLog != "" {
		logInfo("Audit log: %s", cfg.AuditLog)
	}

	return a.Run(ctx)
}
