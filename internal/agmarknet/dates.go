package agmarknet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchDates fetches full record sets for multiple dates. Dates are
// partitioned into batches of batchSize; per-date fetches run concurrently
// within a batch while batches execute sequentially, capping peak outstanding
// requests. The serialized rate limiter still spaces individual requests.
//
// The returned map is keyed by ISO date. Per-date failures are reported in
// their FetchResult, never as an error.
func (c *Client) FetchDates(ctx context.Context, dates []time.Time, filters Filters, batchSize int) map[string]FetchResult {
	if batchSize <= 0 {
		batchSize = 10
	}

	log := zap.L().With(zap.String("component", "agmarknet.client"))

	results := make(map[string]FetchResult, len(dates))
	var mu sync.Mutex

	for start := 0; start < len(dates); start += batchSize {
		end := min(start+batchSize, len(dates))
		batch := dates[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, date := range batch {
			date := date // per-iteration copy; loop vars are shared before Go 1.22
			g.Go(func() error {
				res := c.FetchAllForDate(gctx, date, filters)
				mu.Lock()
				results[date.Format("2006-01-02")] = res
				mu.Unlock()
				return nil
			})
		}
		// Goroutines never return errors; per-date failures live in the map.
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}

		log.Debug("date batch complete",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)),
		)
	}

	return results
}
