package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var syncYesterdayCmd = &cobra.Command{
	Use:   "yesterday",
	Short: "Sync prices for yesterday",
	Long:  "Syncs yesterday's arrival date. This is the normal daily entry point since the source publishes prices with a one-day lag.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orch, err := buildOrchestrator(ctx, pool)
		if err != nil {
			return err
		}

		outcome, err := orch.SyncYesterday(ctx)
		if err != nil {
			return eris.Wrap(err, "sync yesterday")
		}
		printOutcome(outcome)
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncYesterdayCmd)
}
