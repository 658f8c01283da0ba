package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var syncBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Detect and fill gaps in recent price data",
	Long: `Scans the trailing window ending yesterday for dates with no stored
rows and syncs each missing date sequentially.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("days")

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orch, err := buildOrchestrator(ctx, pool)
		if err != nil {
			return err
		}

		summary, err := orch.BackfillMissingDates(ctx, days)
		if err != nil {
			return eris.Wrap(err, "backfill")
		}

		if len(summary.MissingDates) == 0 {
			fmt.Printf("No gaps in the last %d days\n", summary.DaysChecked)
			return nil
		}
		fmt.Printf("Checked %d days, found %d missing: %s\n",
			summary.DaysChecked, len(summary.MissingDates), strings.Join(summary.MissingDates, ", "))
		fmt.Printf("Synced %d dates (%d records)\n", len(summary.SyncedDates), summary.TotalRecords)
		if len(summary.FailedDates) > 0 {
			fmt.Printf("Failed: %s\n", strings.Join(summary.FailedDates, ", "))
		}
		return nil
	},
}

func init() {
	syncBackfillCmd.Flags().Int("days", 7, "trailing window to scan for gaps")
	syncCmd.AddCommand(syncBackfillCmd)
}
