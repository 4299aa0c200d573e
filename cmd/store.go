package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/crescent-outreach/intake-cli/internal/db"
	"github.com/crescent-outreach/intake-cli/internal/parcel"
)

// openPool connects to Postgres with the configured pool limits.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// openWriter returns the configured batch writer plus a cleanup func. The
// returned pool is non-nil only for the postgres driver, for callers that
// also need direct store access (run bookkeeping). Postgres is the
// production target; sqlite serves offline runs.
func openWriter(ctx context.Context) (parcel.BatchWriter, db.Pool, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := openPool(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		return parcel.NewPostgresWriter(pool), pool, pool.Close, nil
	case "sqlite":
		w, err := parcel.NewSQLiteWriter(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return w, nil, func() { _ = w.Close() }, nil
	default:
		return nil, nil, nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newUpserter builds the batch upserter from ingest config.
func newUpserter(w parcel.BatchWriter) *parcel.Upserter {
	return parcel.NewUpserter(w,
		cfg.Ingest.BatchSize,
		cfg.Ingest.UpsertRetries,
		time.Duration(cfg.Ingest.UpsertDelaySecs)*time.Second,
	)
}
