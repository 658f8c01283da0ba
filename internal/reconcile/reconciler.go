// Package reconcile owns the write path for canonical price records:
// natural-key deduplication of incoming batches and idempotent bulk
// persistence into market_data.prices.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/shivas758/agriguru-sub003/internal/db"
	"github.com/shivas758/agriguru-sub003/internal/market"
)

// PricesTable is the canonical price record table.
const PricesTable = "market_data.prices"

var priceColumns = []string{
	"arrival_date", "state", "district", "market", "commodity", "variety",
	"grade", "min_price", "max_price", "modal_price", "arrival_quantity",
	"source", "synced_at",
}

var priceConflictKeys = []string{
	"arrival_date", "state", "district", "market", "commodity", "variety",
}

// Result reports the outcome of a Persist call. Partial success is expected
// and reported, not returned as an error.
type Result struct {
	Persisted    int64 `json:"persisted"`
	Failed       int   `json:"failed"`
	Deduped      int   `json:"deduped"`
	FailedChunks int   `json:"failed_chunks"`
}

// Reconciler deduplicates record batches and upserts them in fixed-size
// chunks. A chunk failure is logged and skipped; processing continues.
type Reconciler struct {
	pool      db.Pool
	chunkSize int
}

// New creates a Reconciler writing through the given pool.
func New(pool db.Pool, chunkSize int) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Reconciler{pool: pool, chunkSize: chunkSize}
}

// Persist dedupes records by natural key and upserts them. The returned error
// is non-nil only when every chunk failed; partial failures are reported in
// the Result and the caller decides the job status.
func (r *Reconciler) Persist(ctx context.Context, records []market.PriceRecord) (*Result, error) {
	log := zap.L().With(zap.String("component", "reconcile"))

	deduped, dropped := Dedupe(records)
	result := &Result{Deduped: dropped}

	if len(deduped) == 0 {
		return result, nil
	}

	var firstErr error
	totalChunks := 0

	for start := 0; start < len(deduped); start += r.chunkSize {
		end := min(start+r.chunkSize, len(deduped))
		chunk := deduped[start:end]
		totalChunks++

		rows := make([][]any, len(chunk))
		for i, rec := range chunk {
			rows[i] = recordRow(rec)
		}

		n, err := db.BulkUpsert(ctx, r.pool, db.UpsertConfig{
			Table:        PricesTable,
			Columns:      priceColumns,
			ConflictKeys: priceConflictKeys,
		}, rows)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			result.Failed += len(chunk)
			result.FailedChunks++
			log.Error("chunk persist failed, skipping",
				zap.Int("chunk_start", start),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			continue
		}
		result.Persisted += n
	}

	if result.FailedChunks == totalChunks && totalChunks > 0 {
		return result, firstErr
	}
	return result, nil
}

// Dedupe resolves provider-side duplicate rows within one batch: records
// sharing a natural key keep the one with the higher modal price, first seen
// winning ties. Input order is preserved for the survivors. The second return
// is the number of duplicates dropped.
func Dedupe(records []market.PriceRecord) ([]market.PriceRecord, int) {
	if len(records) == 0 {
		return nil, 0
	}

	index := make(map[string]int, len(records))
	out := make([]market.PriceRecord, 0, len(records))
	dropped := 0

	for _, rec := range records {
		key := rec.Key()
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		dropped++
		if rec.ModalPrice > out[at].ModalPrice {
			out[at] = rec
		}
	}

	return out, dropped
}

func recordRow(rec market.PriceRecord) []any {
	var grade any
	if rec.Grade != "" {
		grade = rec.Grade
	}
	return []any{
		rec.ArrivalDate,
		rec.State,
		rec.District,
		rec.Market,
		rec.Commodity,
		rec.Variety,
		grade,
		rec.MinPrice,
		rec.MaxPrice,
		rec.ModalPrice,
		rec.ArrivalQuantity,
		string(rec.Source),
		rec.SyncedAt,
	}
}
