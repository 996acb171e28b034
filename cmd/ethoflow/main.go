// ethoflow - instantaneous sampling of behavioral observations.
// Turns coded event logs into presence/absence tables at regular instants.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethoflow/ethoflow/pkg/config"
	"github.com/ethoflow/ethoflow/pkg/lifecycle"
	"github.com/ethoflow/ethoflow/pkg/logging"
	"github.com/ethoflow/ethoflow/pkg/telemetry"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// Resolved in PersistentPreRunE.
var (
	cfgManager *config.Manager
	logger     = slog.New(slog.DiscardHandler)
	shutdown   = lifecycle.NewShutdownManager(nil)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	shutdown.Shutdown(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ethoflow",
	Short: "ethoflow - instantaneous sampling of behavioral observations",
	Long: `ethoflow reads BORIS-style projects (JSON) or ethoflow YAML projects and
samples every selected state behavior at regular instants, producing one
presence/absence table per observation and subject.

Configuration is read from /etc/ethoflow/config.yaml, ~/.ethoflow/config.yaml,
./.ethoflow.yaml and ETHOFLOW_* environment variables, in that order.`,
	Version:           fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Additional config file, applied last")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
}

// setup loads configuration, then builds the logger and tracer from it.
func setup(cmd *cobra.Command, args []string) error {
	cfgManager = config.NewManager()
	if err := cfgManager.Load(); err != nil {
		return err
	}
	if configFile != "" {
		if err := cfgManager.LoadFile(configFile); err != nil {
			return err
		}
	}
	cfg := cfgManager.Get()

	logCfg := cfg.Logging
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logFormat != "" {
		logCfg.Format = logFormat
	}
	l, err := logging.FromConfig(logCfg, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	shutdown = lifecycle.NewShutdownManager(logger)

	flush, err := telemetry.Setup(cmd.Context(), cfg.Telemetry, version)
	if err != nil {
		return err
	}
	shutdown.Register("telemetry", flush)
	return nil
}
