package parcel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/crescent-outreach/intake-cli/internal/db"
)

// IngestRun represents a row in outreach.ingest_runs.
type IngestRun struct {
	ID           uuid.UUID  `json:"id"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RowsFetched  int64      `json:"rows_fetched"`
	RowsUpserted int64      `json:"rows_upserted"`
	FailedRanges string     `json:"failed_ranges,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// IngestLog provides read/write access to the outreach.ingest_runs table.
// It is bookkeeping only: resumability stays manual via the start-ID
// argument, never derived from this table.
type IngestLog struct {
	pool db.Pool
}

// NewIngestLog creates an IngestLog backed by the given connection pool.
func NewIngestLog(pool db.Pool) *IngestLog {
	return &IngestLog{pool: pool}
}

// Start records the beginning of an ingest run and returns its ID.
func (l *IngestLog) Start(ctx context.Context, source string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO outreach.ingest_runs (id, source, status, started_at)
		 VALUES ($1, $2, 'running', now())`,
		id, source,
	)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "ingestlog: start run for %s", source)
	}
	return id, nil
}

// Complete marks a run finished and records the reconciliation summary.
// A run with a non-empty failed-range list still completes: failures are
// reported, not fatal.
func (l *IngestLog) Complete(ctx context.Context, id uuid.UUID, sum *Summary) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE outreach.ingest_runs
		 SET status = 'complete', completed_at = now(),
		     rows_fetched = $1, rows_upserted = $2, failed_ranges = $3
		 WHERE id = $4`,
		sum.RowsFetched, sum.RowsUpserted, sum.FailedRangesString(), id,
	)
	return eris.Wrapf(err, "ingestlog: complete run %s", id)
}

// Fail marks a run as failed with an error message.
func (l *IngestLog) Fail(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE outreach.ingest_runs
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		msg, id,
	)
	return eris.Wrapf(err, "ingestlog: fail run %s", id)
}

// Recent returns the most recent runs, newest first.
func (l *IngestLog) Recent(ctx context.Context, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, source, status, started_at, completed_at,
		        rows_fetched, rows_upserted,
		        COALESCE(failed_ranges, ''), COALESCE(error, '')
		 FROM outreach.ingest_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ingestlog: list recent runs")
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(
			&r.ID, &r.Source, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.RowsFetched, &r.RowsUpserted, &r.FailedRanges, &r.Error,
		); err != nil {
			return nil, eris.Wrap(err, "ingestlog: scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
