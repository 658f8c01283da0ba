package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shivas758/agriguru-sub003/internal/pricesync"
)

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sync jobs and overall health",
	Long:  "Displays the sync job history for the health window and a summary health verdict.",
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

		report, err := orch.Health(ctx)
		if err != nil {
			return eris.Wrap(err, "sync status")
		}

		if report.TotalJobs == 0 {
			zap.L().Info("no sync jobs found, run 'sync yesterday' to start syncing")
			return nil
		}

		formatJobTable(os.Stdout, report.RecentJobs)
		formatHealthSummary(os.Stdout, report)
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
}

// formatJobTable writes a tabular representation of sync jobs to w.
func formatJobTable(out io.Writer, jobs []pricesync.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTYPE\tSTATUS\tSTARTED\tDURATION\tSYNCED\tFAILED\tNOTE")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t-------\t--------\t------\t------\t----")

	for _, j := range jobs {
		dur := "-"
		if j.CompletedAt != nil {
			dur = j.CompletedAt.Sub(j.StartedAt).Round(time.Second).String()
		}

		note := ""
		if j.ErrorMessage != "" {
			note = truncate(j.ErrorMessage, 60)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			j.ID,
			j.SyncDate.Format("2006-01-02"),
			j.SyncType,
			j.Status,
			j.StartedAt.Format("2006-01-02 15:04"),
			dur,
			j.RecordsSynced,
			j.RecordsFailed,
			note,
		)
	}
	_ = w.Flush()
}

// formatHealthSummary writes the aggregate verdict below the table.
func formatHealthSummary(out io.Writer, r *pricesync.HealthReport) {
	verdict := "HEALTHY"
	if !r.Healthy {
		verdict = "UNHEALTHY"
	}
	_, _ = fmt.Fprintf(out, "\nLast %d days: %d jobs, %d completed, %d partial, %d failed (%.0f%% success) [%s]\n",
		r.WindowDays, r.TotalJobs, r.Completed, r.Partial, r.Failed, r.SuccessRate*100, verdict)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
