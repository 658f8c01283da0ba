package pricesync

import (
	"context"

	"github.com/rotisserie/eris"
)

// HealthReport summarizes sync outcomes over the trailing health window.
// Healthy means no failed jobs in the window; partial jobs degrade the
// success rate but do not by themselves flip the health flag.
type HealthReport struct {
	WindowDays  int     `json:"window_days"`
	TotalJobs   int     `json:"total_jobs"`
	Completed   int     `json:"completed"`
	Partial     int     `json:"partial"`
	Failed      int     `json:"failed"`
	Running     int     `json:"running"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
	Healthy     bool    `json:"healthy"`
	RecentJobs  []Job   `json:"recent_jobs"`
}

// Health reports on sync job outcomes within the configured window.
func (o *Orchestrator) Health(ctx context.Context) (*HealthReport, error) {
	days := o.cfg.HealthWindowDays
	if days <= 0 {
		days = 7
	}

	jobs, err := o.jobs.ListRecent(ctx, days)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: health report")
	}

	report := &HealthReport{
		WindowDays: days,
		TotalJobs:  len(jobs),
		RecentJobs: jobs,
	}
	for _, j := range jobs {
		switch j.Status {
		case StatusCompleted:
			report.Completed++
		case StatusPartial:
			report.Partial++
		case StatusFailed:
			report.Failed++
		case StatusRunning:
			report.Running++
		case StatusPending:
			report.Pending++
		}
	}
	if report.TotalJobs > 0 {
		report.SuccessRate = float64(report.Completed) / float64(report.TotalJobs)
	}
	report.Healthy = report.Failed == 0
	return report, nil
}
