package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shivas758/agriguru-sub003/internal/pricesync"
)

var importCmd = &cobra.Command{
	Use:   "import <start YYYY-MM-DD> <end YYYY-MM-DD>",
	Short: "Bulk import a historical date range",
	Long: `Imports every date in the inclusive range, oldest first, refreshing
dates that already have rows. Use --resume to skip dates that already have
stored data, picking up where an interrupted import left off.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, err := parseDay(args[0])
		if err != nil {
			return err
		}
		end, err := parseDay(args[1])
		if err != nil {
			return err
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orch, err := buildOrchestrator(ctx, pool)
		if err != nil {
			return err
		}
		im := pricesync.NewImporter(orch)

		resume, _ := cmd.Flags().GetBool("resume")
		var summary *pricesync.ImportSummary
		if resume {
			summary, err = im.Resume(ctx, start, end)
		} else {
			summary, err = im.Run(ctx, start, end)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}

		fmt.Printf("Imported %d dates (%d records), skipped %d\n",
			summary.DatesProcessed, summary.RecordsSynced, summary.DatesSkipped)
		if len(summary.FailedDates) > 0 {
			fmt.Printf("Failed: %s\n", strings.Join(summary.FailedDates, ", "))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("resume", false, "skip dates that already have stored rows")
	rootCmd.AddCommand(importCmd)
}
