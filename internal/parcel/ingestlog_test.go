package parcel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLog(t *testing.T) (*IngestLog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewIngestLog(mock), mock
}

func TestIngestLogStart(t *testing.T) {
	log, mock := newMockLog(t)

	mock.ExpectExec(`INSERT INTO outreach\.ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "arcgis").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := log.Start(context.Background(), "arcgis")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogStart_Error(t *testing.T) {
	log, mock := newMockLog(t)

	mock.ExpectExec(`INSERT INTO outreach\.ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "arcgis").
		WillReturnError(errors.New("connection refused"))

	_, err := log.Start(context.Background(), "arcgis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestlog: start run")
}

func TestIngestLogComplete(t *testing.T) {
	log, mock := newMockLog(t)
	id := uuid.New()

	sum := &Summary{
		RowsFetched:  161000,
		RowsUpserted: 160995,
		FailedRanges: []Range{{Start: 200, End: 205}},
	}

	mock.ExpectExec(`UPDATE outreach\.ingest_runs`).
		WithArgs(int64(161000), int64(160995), "[200,205)", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, log.Complete(context.Background(), id, sum))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogFail(t *testing.T) {
	log, mock := newMockLog(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE outreach\.ingest_runs`).
		WithArgs("store unreachable", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, log.Fail(context.Background(), id, "store unreachable"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogRecent(t *testing.T) {
	log, mock := newMockLog(t)

	started := time.Now().Add(-time.Hour)
	completed := time.Now()
	id := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "source", "status", "started_at", "completed_at",
		"rows_fetched", "rows_upserted", "failed_ranges", "error",
	}).AddRow(id, "arcgis", "complete", started, &completed,
		int64(161000), int64(161000), "", "")

	mock.ExpectQuery(`SELECT id, source, status, started_at`).
		WithArgs(5).
		WillReturnRows(rows)

	runs, err := log.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "complete", runs[0].Status)
	assert.Equal(t, int64(161000), runs[0].RowsUpserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestLogRecent_DefaultLimit(t *testing.T) {
	log, mock := newMockLog(t)

	mock.ExpectQuery(`SELECT id, source, status, started_at`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source", "status", "started_at", "completed_at",
			"rows_fetched", "rows_upserted", "failed_ranges", "error",
		}))

	runs, err := log.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
