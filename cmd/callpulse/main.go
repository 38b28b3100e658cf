package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"callpulse/config"
	"callpulse/internal/logging"
)

var (
	logger  *zap.Logger
	cfg     config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callpulse",
	Short: "Call Pulse call-review dashboard",
	Long: `Call Pulse serves the multi-location call review dashboard: portfolio
summary, locations overview, and per-location drill-down.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Environment)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		for _, w := range cfg.Warnings {
			logger.Warn("config", zap.String("warning", w))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(serveCmd, locationsCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
