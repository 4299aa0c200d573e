package parcel

import (
	"context"
	"time"

	"github.com/crescent-outreach/intake-cli/internal/db"
)

// ParcelTable is the fully qualified parcel table name.
const ParcelTable = "outreach.parcels"

// PostgresWriter writes parcel rows through the shared temp-table COPY +
// INSERT ... ON CONFLICT upsert helper. A conflicting objectid replaces the
// whole row.
type PostgresWriter struct {
	pool db.Pool
}

// NewPostgresWriter creates a BatchWriter backed by a pgx pool.
func NewPostgresWriter(pool db.Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

// WriteBatch upserts one sub-batch keyed on objectid.
func (w *PostgresWriter) WriteBatch(ctx context.Context, rows []Row) (int64, error) {
	now := time.Now().UTC()
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values(now)
	}

	return db.BulkUpsert(ctx, w.pool, db.UpsertConfig{
		Table:        ParcelTable,
		Columns:      Columns,
		ConflictKeys: []string{"objectid"},
	}, values)
}
