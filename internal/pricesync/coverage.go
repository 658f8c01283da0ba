package pricesync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shivas758/agriguru-sub003/internal/db"
)

// Coverage answers read-side questions about which dates already have stored
// price records.
type Coverage struct {
	pool db.Pool
}

// NewCoverage creates a Coverage reader over the given pool.
func NewCoverage(pool db.Pool) *Coverage {
	return &Coverage{pool: pool}
}

// HasDate reports whether any price row exists for the given arrival date.
func (c *Coverage) HasDate(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM market_data.prices WHERE arrival_date = $1)`,
		date,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "coverage: check date %s", date.Format("2006-01-02"))
	}
	return exists, nil
}

// CountForDate returns the number of price rows stored for a date.
func (c *Coverage) CountForDate(ctx context.Context, date time.Time) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx,
		`SELECT count(*) FROM market_data.prices WHERE arrival_date = $1`,
		date,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "coverage: count date %s", date.Format("2006-01-02"))
	}
	return n, nil
}

// MissingDates returns the dates in [from, to] (inclusive) with no stored
// rows, in ascending order.
func (c *Coverage) MissingDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var missing []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		has, err := c.HasDate(ctx, d)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, d)
		}
	}
	return missing, nil
}
