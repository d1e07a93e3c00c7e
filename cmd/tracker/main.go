// cmd/tracker/main.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"repo-growth-tracker/internal/config"
)

var (
	// Version information (set by build flags)
	Version = "dev"

	jsonOutput bool
	logLevel   = new(slog.LevelVar)
	logger     *slog.Logger
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Track star growth of GitHub repositories",
	Long: `tracker discovers repositories through GitHub search, records a snapshot of
each one per run, and derives daily and weekly star growth from the history.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Keep stdout clean when it carries the run's records.
		var out io.Writer = os.Stdout
		if jsonOutput {
			out = os.Stderr
		}
		logger = newLogger(out, logLevel)
		slog.SetDefault(logger)

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		setLogLevel(cfg.LogLevel, logLevel)
		logger.Debug("Configuration loaded successfully", "store", cfg.StoreDriver, "mirror", cfg.MirrorDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
