package parcel

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteWriter writes parcel rows to a local SQLite database. It exists for
// development and offline runs; semantics mirror the Postgres writer
// (whole-row overwrite keyed on objectid).
type SQLiteWriter struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS parcels (
	objectid        INTEGER PRIMARY KEY,
	situs_address   TEXT,
	owner_name_1    TEXT,
	owner_name_2    TEXT,
	tax_bill_number TEXT,
	property_class  TEXT,
	land_value      REAL,
	building_value  REAL,
	total_value     REAL,
	frontage        REAL,
	depth           REAL,
	area_sqft       REAL,
	centroid_lat    REAL,
	centroid_lng    REAL,
	polygon_coords  TEXT,
	last_updated    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parcels_situs_address ON parcels(situs_address);
`

// NewSQLiteWriter opens (or creates) a SQLite database at the given path,
// configures WAL mode, and ensures the parcels table exists.
func NewSQLiteWriter(dsn string) (*SQLiteWriter, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := sdb.Exec(sqliteSchema); err != nil {
		sdb.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: create schema")
	}
	return &SQLiteWriter{db: sdb}, nil
}

// upsertSQL is built once from the shared column list so the SQLite writer
// cannot drift from the Postgres schema.
var upsertSQL = func() string {
	placeholders := strings.TrimRight(strings.Repeat("?,", len(Columns)), ",")
	var sets []string
	for _, c := range Columns {
		if c == "objectid" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s=excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO parcels (%s) VALUES (%s) ON CONFLICT(objectid) DO UPDATE SET %s",
		strings.Join(Columns, ", "),
		placeholders,
		strings.Join(sets, ", "),
	)
}()

// WriteBatch upserts one sub-batch inside a single transaction.
func (w *SQLiteWriter) WriteBatch(ctx context.Context, rows []Row) (int64, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Values(now)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert objectid %d", r.ObjectID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

// Close closes the underlying database handle.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
