// cmd/tracker/status.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"repo-growth-tracker/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the snapshot store was last updated",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	last, err := a.store.LastUpdateTime(ctx)
	if err != nil {
		return err
	}
	count, err := a.store.RowCount(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store:        %s\n", cfg.StoreDriver)
	if last.Equal(store.Never) {
		fmt.Fprintln(out, "Last update:  never")
	} else {
		fmt.Fprintf(out, "Last update:  %s (%s ago)\n", last.Format(time.RFC3339), time.Since(last).Round(time.Minute))
	}
	fmt.Fprintf(out, "Snapshots:    %d\n", count)
	return nil
}
