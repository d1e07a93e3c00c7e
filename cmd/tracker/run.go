// cmd/tracker/run.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repo-growth-tracker/internal/ranking"
)

var runCmd = &cobra.Command{
	Use:   "run [daily|weekly]",
	Short: "Perform a single tracking run",
	Long: `Discover repositories, record a snapshot of each, compute growth against
the stored history and sync the result to the configured mirror.

The mode selects which growth figures the run's top list is ranked by.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(ranking.Daily), string(ranking.Weekly)},
	RunE:      runOnce,
}

var scheduleMode string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the tracker on SCHEDULE_INTERVAL until interrupted",
	RunE:  runSchedule,
}

func init() {
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "write the run's growth records to stdout as JSON")
	scheduleCmd.Flags().StringVar(&scheduleMode, "mode", string(ranking.Daily), "ranking mode: daily or weekly")
}

func runOnce(cmd *cobra.Command, args []string) error {
	mode := ranking.Daily
	if len(args) == 1 {
		var err error
		if mode, err = ranking.ParsePeriod(args[0]); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := a.newTracker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := tr.Run(ctx, mode)
	if err != nil {
		return err
	}
	if res.Summary.Degraded() {
		logger.Warn("Run completed in degraded state",
			"partial", res.Summary.Partial,
			"store_failures", len(res.Summary.StoreFailures),
			"lookup_failures", res.Summary.LookupFailures,
			"mirror_failures", len(res.Summary.MirrorFailures))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	mode, err := ranking.ParsePeriod(scheduleMode)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := a.newTracker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Application started. Waiting for shutdown signal...")
	tr.Start(ctx, cfg.ScheduleInterval, mode)
	logger.Info("Shutdown signal received. Exiting.")
	return nil
}
