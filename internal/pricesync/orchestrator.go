package pricesync

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivas758/agriguru-sub003/internal/agmarknet"
	"github.com/shivas758/agriguru-sub003/internal/config"
	"github.com/shivas758/agriguru-sub003/internal/market"
	"github.com/shivas758/agriguru-sub003/internal/reconcile"
)

// ErrAlreadyRunning is returned when a trigger fires while a sync of the same
// job type is still executing. Callers treat it as a no-op, not a failure.
var ErrAlreadyRunning = eris.New("pricesync: a sync of this type is already running")

// SourceClient is the fetch surface the orchestrator drives. Satisfied by
// *agmarknet.Client; test doubles implement it directly.
type SourceClient interface {
	FetchAllForDate(ctx context.Context, date time.Time, filters agmarknet.Filters) agmarknet.FetchResult
	FetchByStates(ctx context.Context, date time.Time, states []string) agmarknet.FetchResult
	FetchByCommodities(ctx context.Context, date time.Time, commodities []string) agmarknet.FetchResult
}

// Persister is the write surface. Satisfied by *reconcile.Reconciler.
type Persister interface {
	Persist(ctx context.Context, records []market.PriceRecord) (*reconcile.Result, error)
}

// SyncOutcome summarizes one date's sync for the caller.
type SyncOutcome struct {
	Date          time.Time `json:"date"`
	Status        JobStatus `json:"status"`
	RecordsSynced int64     `json:"records_synced"`
	RecordsFailed int64     `json:"records_failed"`
	Skipped       bool      `json:"skipped"`
	Note          string    `json:"note,omitempty"`
}

// BackfillSummary aggregates a backfill run over a trailing window.
type BackfillSummary struct {
	DaysChecked  int      `json:"days_checked"`
	MissingDates []string `json:"missing_dates"`
	SyncedDates  []string `json:"synced_dates"`
	FailedDates  []string `json:"failed_dates"`
	TotalRecords int64    `json:"total_records"`
}

// Orchestrator decides which dates to sync, drives the source client and
// reconciler, and records per-date job status. All collaborators are injected
// so tests can substitute doubles.
type Orchestrator struct {
	client SourceClient
	rec    Persister
	jobs   *JobLog
	cov    *Coverage
	cfg    config.SyncConfig

	// One lock per job type: a scheduled trigger firing while the previous
	// run is still executing must not overlap it on the same dates.
	locks map[SyncType]*sync.Mutex

	now func() time.Time
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(client SourceClient, rec Persister, jobs *JobLog, cov *Coverage, cfg config.SyncConfig) *Orchestrator {
	return &Orchestrator{
		client: client,
		rec:    rec,
		jobs:   jobs,
		cov:    cov,
		cfg:    cfg,
		locks: map[SyncType]*sync.Mutex{
			SyncDaily:  {},
			SyncBulk:   {},
			SyncHourly: {},
		},
		now: time.Now,
	}
}

func (o *Orchestrator) lockFor(st SyncType) *sync.Mutex {
	return o.locks[st]
}

// SyncDate syncs a single date under the daily job type. A date that already
// has stored rows is a deliberate no-op reported as completed with zero new
// records.
func (o *Orchestrator) SyncDate(ctx context.Context, date time.Time) (*SyncOutcome, error) {
	return o.syncDateAs(ctx, date, SyncDaily)
}

// SyncYesterday computes today−1 and delegates to SyncDate.
func (o *Orchestrator) SyncYesterday(ctx context.Context) (*SyncOutcome, error) {
	y := o.now().UTC().AddDate(0, 0, -1)
	yesterday := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	return o.SyncDate(ctx, yesterday)
}

func (o *Orchestrator) syncDateAs(ctx context.Context, date time.Time, st SyncType) (*SyncOutcome, error) {
	lock := o.lockFor(st)
	if !lock.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer lock.Unlock()

	return o.runDate(ctx, date, st, true)
}

// runDate executes the sync for one date. Callers must hold the job-type
// lock. checkCoverage enables the skip-if-already-synced short circuit; the
// bulk importer disables it.
func (o *Orchestrator) runDate(ctx context.Context, date time.Time, st SyncType, checkCoverage bool) (*SyncOutcome, error) {
	log := zap.L().With(
		zap.String("component", "pricesync.orchestrator"),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("sync_type", string(st)),
	)

	jobID, err := o.jobs.Create(ctx, date, st)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create sync job")
	}
	if err := o.jobs.MarkRunning(ctx, jobID); err != nil {
		return nil, eris.Wrap(err, "orchestrator: mark job running")
	}

	if checkCoverage {
		has, err := o.cov.HasDate(ctx, date)
		if err != nil {
			o.failJob(ctx, jobID, err, log)
			return nil, eris.Wrap(err, "orchestrator: check coverage")
		}
		if has {
			log.Info("date already synced, skipping")
			if err := o.jobs.Complete(ctx, jobID, 0, 0, "already synced, skipped"); err != nil {
				log.Error("failed to record skip", zap.Error(err))
			}
			return &SyncOutcome{Date: date, Status: StatusCompleted, Skipped: true}, nil
		}
	}

	log.Info("fetching records")
	res := o.fetch(ctx, date)
	if !res.Success {
		fetchErr := eris.Errorf("orchestrator: fetch failed: %s", res.Err)
		o.failJob(ctx, jobID, fetchErr, log)
		return nil, fetchErr
	}

	if len(res.Records) == 0 {
		// Absence of source data for a date is expected (non-trading days),
		// reported as success with zero records, not a failure.
		log.Info("no data available for date")
		if err := o.jobs.Complete(ctx, jobID, 0, 0, "no data available for date"); err != nil {
			log.Error("failed to record completion", zap.Error(err))
		}
		return &SyncOutcome{Date: date, Status: StatusCompleted, Note: "no data available for date"}, nil
	}

	pres, err := o.rec.Persist(ctx, res.Records)
	if err != nil {
		o.failJob(ctx, jobID, err, log)
		return nil, eris.Wrap(err, "orchestrator: persist")
	}

	outcome := &SyncOutcome{
		Date:          date,
		RecordsSynced: pres.Persisted,
		RecordsFailed: int64(pres.Failed),
	}

	if pres.FailedChunks > 0 {
		outcome.Status = StatusPartial
		msg := eris.Errorf("%d of %d records failed to persist", pres.Failed, len(res.Records)).Error()
		outcome.Note = msg
		if err := o.jobs.MarkPartial(ctx, jobID, pres.Persisted, int64(pres.Failed), msg); err != nil {
			log.Error("failed to record partial status", zap.Error(err))
		}
		log.Warn("sync partially completed",
			zap.Int64("synced", pres.Persisted),
			zap.Int("failed", pres.Failed),
		)
		return outcome, nil
	}

	outcome.Status = StatusCompleted
	if err := o.jobs.Complete(ctx, jobID, pres.Persisted, 0, ""); err != nil {
		log.Error("failed to record completion", zap.Error(err))
	}
	log.Info("sync complete",
		zap.Int64("synced", pres.Persisted),
		zap.Int("deduped", pres.Deduped),
	)
	return outcome, nil
}

// fetch narrows by the configured allow-lists when present; states take
// precedence over commodities when both are set.
func (o *Orchestrator) fetch(ctx context.Context, date time.Time) agmarknet.FetchResult {
	switch {
	case len(o.cfg.States) > 0:
		return o.client.FetchByStates(ctx, date, o.cfg.States)
	case len(o.cfg.Commodities) > 0:
		return o.client.FetchByCommodities(ctx, date, o.cfg.Commodities)
	default:
		return o.client.FetchAllForDate(ctx, date, agmarknet.Filters{})
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID int64, cause error, log *zap.Logger) {
	log.Error("sync failed", zap.Error(cause))
	if err := o.jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		log.Error("failed to record failure", zap.Error(err))
	}
}

// BackfillMissingDates enumerates the trailing N-day window ending yesterday,
// checks store coverage per date, and syncs only the dates lacking data,
// sequentially with a short pause between dates to avoid bursting the source.
func (o *Orchestrator) BackfillMissingDates(ctx context.Context, days int) (*BackfillSummary, error) {
	if days <= 0 {
		return nil, eris.Errorf("orchestrator: invalid backfill window %d", days)
	}

	lock := o.lockFor(SyncDaily)
	if !lock.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer lock.Unlock()

	log := zap.L().With(zap.String("component", "pricesync.orchestrator"))

	y := o.now().UTC().AddDate(0, 0, -1)
	yesterday := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)

	summary := &BackfillSummary{
		DaysChecked:  days,
		MissingDates: []string{},
		SyncedDates:  []string{},
		FailedDates:  []string{},
	}

	for i := days - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		date := yesterday.AddDate(0, 0, -i)
		iso := date.Format("2006-01-02")

		has, err := o.cov.HasDate(ctx, date)
		if err != nil {
			return summary, eris.Wrapf(err, "orchestrator: backfill coverage check %s", iso)
		}
		if has {
			continue
		}
		summary.MissingDates = append(summary.MissingDates, iso)

		// Coverage was just checked; no need to re-check inside runDate.
		outcome, err := o.runDate(ctx, date, SyncDaily, false)
		if err != nil {
			log.Warn("backfill date failed, continuing",
				zap.String("date", iso),
				zap.Error(err),
			)
			summary.FailedDates = append(summary.FailedDates, iso)
		} else {
			summary.SyncedDates = append(summary.SyncedDates, iso)
			summary.TotalRecords += outcome.RecordsSynced
		}

		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return summary, err
			}
		}
	}

	log.Info("backfill complete",
		zap.Int("days_checked", summary.DaysChecked),
		zap.Int("missing", len(summary.MissingDates)),
		zap.Int("synced", len(summary.SyncedDates)),
		zap.Int64("records", summary.TotalRecords),
	)
	return summary, nil
}

// pause waits the configured inter-date delay, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	d := o.cfg.Pause()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
