package pricesync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shivas758/agriguru-sub003/internal/db"
)

// SyncType distinguishes the job families that may run against a date.
type SyncType string

const (
	SyncDaily  SyncType = "daily"
	SyncBulk   SyncType = "bulk"
	SyncHourly SyncType = "hourly"
)

// JobStatus is the lifecycle state of a sync job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job represents a row in market_data.sync_jobs: one bookkeeping entry per
// (date, sync type). A re-sync supersedes the previous run's row.
type Job struct {
	ID            int64      `json:"id"`
	SyncDate      time.Time  `json:"sync_date"`
	SyncType      SyncType   `json:"sync_type"`
	Status        JobStatus  `json:"status"`
	RecordsSynced int64      `json:"records_synced"`
	RecordsFailed int64      `json:"records_failed"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// JobLog provides read/write access to the market_data.sync_jobs table.
type JobLog struct {
	pool db.Pool
}

// NewJobLog creates a JobLog backed by the given connection pool.
func NewJobLog(pool db.Pool) *JobLog {
	return &JobLog{pool: pool}
}

// Create records the beginning of a sync run as pending and returns its ID.
// A previous run for the same (date, type) is overwritten, not appended.
func (l *JobLog) Create(ctx context.Context, date time.Time, syncType SyncType) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO market_data.sync_jobs (sync_date, sync_type, status, started_at)
		 VALUES ($1, $2, 'pending', now())
		 ON CONFLICT (sync_date, sync_type) DO UPDATE
		 SET status = 'pending', started_at = now(), records_synced = 0,
		     records_failed = 0, error_message = NULL, completed_at = NULL
		 RETURNING id`,
		date, string(syncType),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "joblog: create job for %s/%s", date.Format("2006-01-02"), syncType)
	}
	return id, nil
}

// MarkRunning transitions a job to running.
func (l *JobLog) MarkRunning(ctx context.Context, jobID int64) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE market_data.sync_jobs SET status = 'running' WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: mark job %d running", jobID)
	}
	return nil
}

// Complete marks a job as successfully completed. The note is stored in
// error_message for informational outcomes such as "no data available".
func (l *JobLog) Complete(ctx context.Context, jobID int64, synced, failed int64, note string) error {
	var msg *string
	if note != "" {
		msg = &note
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE market_data.sync_jobs
		 SET status = 'completed', completed_at = now(),
		     records_synced = $1, records_failed = $2, error_message = $3
		 WHERE id = $4`,
		synced, failed, msg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: complete job %d", jobID)
	}
	return nil
}

// MarkPartial marks a job where some but not all chunks persisted.
func (l *JobLog) MarkPartial(ctx context.Context, jobID int64, synced, failed int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE market_data.sync_jobs
		 SET status = 'partial', completed_at = now(),
		     records_synced = $1, records_failed = $2, error_message = $3
		 WHERE id = $4`,
		synced, failed, errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: mark job %d partial", jobID)
	}
	return nil
}

// Fail marks a job as failed with an error message.
func (l *JobLog) Fail(ctx context.Context, jobID int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE market_data.sync_jobs
		 SET status = 'failed', completed_at = now(), error_message = $1
		 WHERE id = $2`,
		errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "joblog: fail job %d", jobID)
	}
	return nil
}

// ListRecent returns jobs started within the trailing N-day window, most
// recent first.
func (l *JobLog) ListRecent(ctx context.Context, days int) ([]Job, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, sync_date, sync_type, status, records_synced, records_failed,
		        error_message, started_at, completed_at
		 FROM market_data.sync_jobs
		 WHERE started_at >= now() - make_interval(days => $1)
		 ORDER BY started_at DESC`,
		days,
	)
	if err != nil {
		return nil, eris.Wrap(err, "joblog: list recent")
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var syncType, status string
		var errMsg *string
		if err := rows.Scan(&j.ID, &j.SyncDate, &syncType, &status, &j.RecordsSynced,
			&j.RecordsFailed, &errMsg, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "joblog: scan job row")
		}
		j.SyncType = SyncType(syncType)
		j.Status = JobStatus(status)
		if errMsg != nil {
			j.ErrorMessage = *errMsg
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
