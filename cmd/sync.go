package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shivas758/agriguru-sub003/internal/agmarknet"
	"github.com/shivas758/agriguru-sub003/internal/db"
	"github.com/shivas758/agriguru-sub003/internal/pricesync"
	"github.com/shivas758/agriguru-sub003/internal/reconcile"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync market prices from the Agmarknet API",
	Long:  "Syncs daily commodity prices into market_data.prices, tracking per-date job status in market_data.sync_jobs.",
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// storePool creates the Postgres connection pool from configuration.
func storePool(ctx context.Context) (db.Pool, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("no database_url configured (set store.database_url or AGRIGURU_STORE_DATABASE_URL)")
	}
	return db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
}

// buildOrchestrator wires the sync engine from configuration: API client,
// reconciler, job log, and coverage reader over a shared pool. Migrations
// are applied first so a fresh database works out of the box.
func buildOrchestrator(ctx context.Context, pool db.Pool) (*pricesync.Orchestrator, error) {
	if err := pricesync.Migrate(ctx, pool); err != nil {
		return nil, eris.Wrap(err, "run migrations")
	}

	client := agmarknet.NewClient(cfg.Agmarknet)
	rec := reconcile.New(pool, cfg.Sync.ChunkSize)
	jobs := pricesync.NewJobLog(pool)
	cov := pricesync.NewCoverage(pool)
	return pricesync.NewOrchestrator(client, rec, jobs, cov, cfg.Sync), nil
}

// parseDay parses a YYYY-MM-DD argument into a UTC midnight time.
func parseDay(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return d.UTC(), nil
}
