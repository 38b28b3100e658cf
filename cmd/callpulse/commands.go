package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"callpulse/config"
	"callpulse/internal/app"
	"callpulse/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return application.Run(ctx)
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Print the location registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := app.LoadDataset(cfg, logger)
		if err != nil {
			return err
		}
		return printLocations(cmd.OutOrStdout(), reg)
	},
}

func printLocations(w io.Writer, reg *registry.Registry) error {
	skewed := make(map[string]bool)
	for _, id := range reg.Inconsistencies() {
		skewed[id] = true
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATING\tINBOUND\tMISSED\tSALES\tSERVICE\tOTHER\t")
	for _, loc := range reg.All() {
		flag := ""
		if skewed[loc.ID] {
			flag = "counters exceed inbound"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			loc.ID, loc.Name, loc.GoogleRating, loc.InboundCalls, loc.MissedCalls, loc.SalesCalls, loc.ServiceCalls, loc.OtherCalls, flag)
	}
	fmt.Fprintf(tw, "\t%d locations\t\t%d\t\t\t\t\t\n", reg.Len(), reg.TotalInbound())
	return tw.Flush()
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration and the review dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkConfig(cmd.OutOrStdout(), cfg)
	},
}

func checkConfig(w io.Writer, c config.Config) error {
	fmt.Fprintf(w, "http port:     %s\n", c.HTTPPort)
	fmt.Fprintf(w, "database:      %s\n", c.DBPath)
	dataPath := c.DataPath
	if dataPath == "" {
		dataPath = "(embedded seed)"
	}
	fmt.Fprintf(w, "dataset:       %s\n", dataPath)
	fmt.Fprintf(w, "import dir:    %s (watcher %v)\n", c.ImportDir, c.EnableWatcher)
	fmt.Fprintf(w, "queue:         %d slots, %d workers, %s timeout\n", c.JobQueueSize, c.WorkerCount, c.JobTimeout())
	fmt.Fprintf(w, "session ttl:   %s\n", c.SessionTTL())
	fmt.Fprintf(w, "sign-in user:  %s / %s\n", c.Auth.Username, c.Auth.Email)
	for _, warn := range c.Warnings {
		fmt.Fprintf(w, "warning:       %s\n", warn)
	}
	_, reg, err := app.LoadDataset(c, logger)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	fmt.Fprintf(w, "locations:     %d (%d inconsistent)\n", reg.Len(), len(reg.Inconsistencies()))
	return nil
}
