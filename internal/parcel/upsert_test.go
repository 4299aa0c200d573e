package parcel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crescent-outreach/intake-cli/internal/resilience"
)

// fakeWriter records sub-batch sizes and can fail a fixed number of times.
// Writes land in a map keyed by objectid so repeated writes stay idempotent.
type fakeWriter struct {
	batches  [][]Row
	failures int
	store    map[int64]Row
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{store: make(map[int64]Row)}
}

func (w *fakeWriter) WriteBatch(_ context.Context, rows []Row) (int64, error) {
	w.batches = append(w.batches, rows)
	if w.failures > 0 {
		w.failures--
		return 0, errors.New("store: connection reset")
	}
	for _, r := range rows {
		w.store[r.ObjectID] = r
	}
	return int64(len(rows)), nil
}

func makeRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{ObjectID: int64(i + 1)}
	}
	return rows
}

func TestUpsert_SubBatching(t *testing.T) {
	w := newFakeWriter()
	u := NewUpserter(w, 500, 3, time.Millisecond)

	n, err := u.Upsert(context.Background(), makeRows(1200))
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)

	// 1200 rows at batch size 500 -> 500, 500, 200.
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 500)
	assert.Len(t, w.batches[1], 500)
	assert.Len(t, w.batches[2], 200)
	assert.Len(t, w.store, 1200)
}

func TestUpsert_RetriesTransientFailure(t *testing.T) {
	w := newFakeWriter()
	w.failures = 2 // first two attempts fail, third succeeds
	u := NewUpserter(w, 500, 3, time.Millisecond)

	n, err := u.Upsert(context.Background(), makeRows(10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Len(t, w.batches, 3)
}

func TestUpsert_ExhaustedRetriesReturnsUpsertError(t *testing.T) {
	w := newFakeWriter()
	w.failures = 10
	u := NewUpserter(w, 500, 3, time.Millisecond)

	n, err := u.Upsert(context.Background(), makeRows(700))
	require.Error(t, err)

	var uerr *UpsertError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 0, uerr.Offset)
	assert.Equal(t, 500, uerr.Size)

	// Exactly 3 attempts for the first sub-batch; the second never starts.
	assert.Len(t, w.batches, 3)
	assert.Equal(t, int64(0), n)
}

func TestUpsert_LaterSubBatchFailureKeepsEarlierWrites(t *testing.T) {
	w := newFakeWriter()
	u := NewUpserter(w, 500, 1, time.Millisecond)

	// Succeed on the first sub-batch, then fail the second one for good.
	failFrom := 1
	calls := 0
	wrapped := writerFunc(func(ctx context.Context, rows []Row) (int64, error) {
		calls++
		if calls > failFrom {
			return 0, errors.New("store: disk full")
		}
		return w.WriteBatch(ctx, rows)
	})
	u = NewUpserter(wrapped, 500, 1, time.Millisecond)

	n, err := u.Upsert(context.Background(), makeRows(900))
	require.Error(t, err)

	var uerr *UpsertError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 500, uerr.Offset)
	assert.Equal(t, 400, uerr.Size)

	// The first sub-batch stays written.
	assert.Equal(t, int64(500), n)
	assert.Len(t, w.store, 500)
}

func TestUpsert_WriteFailuresClassifyTransient(t *testing.T) {
	w := newFakeWriter()
	w.failures = 10
	u := NewUpserter(w, 500, 2, time.Millisecond)

	_, err := u.Upsert(context.Background(), makeRows(5))
	require.Error(t, err)

	// Writer errors are wrapped for the transient classifier; without the
	// wrap a bare store error would end the sub-batch on its first attempt.
	var te *resilience.TransientError
	assert.ErrorAs(t, err, &te)
	assert.Len(t, w.batches, 2)
}

func TestUpsert_Idempotent(t *testing.T) {
	w := newFakeWriter()
	u := NewUpserter(w, 500, 3, time.Millisecond)

	rows := makeRows(250)
	_, err := u.Upsert(context.Background(), rows)
	require.NoError(t, err)
	_, err = u.Upsert(context.Background(), rows)
	require.NoError(t, err)

	// Double-write converges to the same store state.
	assert.Len(t, w.store, 250)
}

func TestUpsert_EmptyBatch(t *testing.T) {
	w := newFakeWriter()
	u := NewUpserter(w, 500, 3, time.Millisecond)

	n, err := u.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.batches)
}

func TestNewUpserter_Defaults(t *testing.T) {
	u := NewUpserter(newFakeWriter(), 0, 0, 0)
	assert.Equal(t, 500, u.batchSize)
	assert.Equal(t, 3, u.retry.MaxAttempts)
}

// writerFunc adapts a function to BatchWriter for test composition.
type writerFunc func(ctx context.Context, rows []Row) (int64, error)

func (f writerFunc) WriteBatch(ctx context.Context, rows []Row) (int64, error) {
	return f(ctx, rows)
}
