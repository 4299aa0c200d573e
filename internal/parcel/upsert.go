package parcel

import (
	"context"
	"time"

	"github.com/crescent-outreach/intake-cli/internal/resilience"
)

// BatchWriter writes one sub-batch of rows to a backing store as an
// idempotent upsert keyed by objectid. Implementations exist for Postgres
// and SQLite.
type BatchWriter interface {
	WriteBatch(ctx context.Context, rows []Row) (int64, error)
}

// Upserter partitions row batches into bounded sub-batches and writes them
// sequentially with linear-backoff retries per sub-batch.
type Upserter struct {
	writer    BatchWriter
	batchSize int
	retry     resilience.RetryConfig
}

// NewUpserter creates an Upserter. batchSize bounds each store write;
// each sub-batch gets up to retries attempts with attempt*delay backoff.
func NewUpserter(w BatchWriter, batchSize, retries int, delay time.Duration) *Upserter {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retries <= 0 {
		retries = 3
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}

	cfg := resilience.LinearRetryConfig(retries, delay)
	cfg.OnRetry = resilience.RetryLogger("store", "upsert_batch")

	return &Upserter{
		writer:    w,
		batchSize: batchSize,
		retry:     cfg,
	}
}

// Upsert writes rows in sub-batches and returns the number of rows upserted.
// On a sub-batch exhausting its retries it returns an UpsertError; rows
// written by earlier sub-batches stay written (the caller refetches and
// rewrites the whole range on retry, converging by idempotence).
func (u *Upserter) Upsert(ctx context.Context, rows []Row) (int64, error) {
	var total int64
	for offset := 0; offset < len(rows); offset += u.batchSize {
		end := offset + u.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[offset:end]

		n, err := resilience.DoVal(ctx, u.retry, func(ctx context.Context) (int64, error) {
			n, err := u.writer.WriteBatch(ctx, batch)
			if err != nil {
				// Store write failures are retryable at this level; anything
				// that survives goes to the range-granular retry pass.
				return 0, resilience.NewTransientError(err, 0)
			}
			return n, nil
		})
		if err != nil {
			return total, &UpsertError{Offset: offset, Size: len(batch), Err: err}
		}
		total += n
	}
	return total, nil
}
