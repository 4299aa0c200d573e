package intake

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func strPtr(s string) *string { return &s }

func submissionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "objectid", "respondent_name", "email", "phone", "address",
		"owns_property", "is_resident", "notes", "wants_signature",
		"envelope_id", "created_at", "updated_at",
	})
}

func TestUpsertSubmission(t *testing.T) {
	store, mock := newMockStore(t)

	sub := &Submission{
		ID:             uuid.New(),
		RespondentName: "Alice Smith",
		Address:        "2316 Esplanade Ave",
		OwnsProperty:   true,
	}

	mock.ExpectExec(`INSERT INTO outreach\.submissions`).
		WithArgs(sub.ID, sub.ObjectID, sub.RespondentName, sub.Email, sub.Phone,
			sub.Address, sub.OwnsProperty, sub.IsResident, sub.Notes,
			sub.WantsSignature).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertSubmission(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubmission(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, objectid, respondent_name`).
		WithArgs(id).
		WillReturnRows(submissionRows().AddRow(
			id, (*int64)(nil), "Alice Smith", strPtr("alice@example.com"),
			(*string)(nil), "2316 Esplanade Ave", true, true, (*string)(nil),
			false, (*string)(nil), now, now,
		))

	sub, err := store.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, sub.ID)
	assert.Equal(t, "Alice Smith", sub.RespondentName)
	require.NotNil(t, sub.Email)
	assert.Equal(t, "alice@example.com", *sub.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubmission_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, objectid, respondent_name`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetSubmission(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetEnvelopeID(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE outreach\.submissions`).
		WithArgs("env-123", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetEnvelopeID(context.Background(), id, "env-123"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetEnvelopeID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE outreach\.submissions`).
		WithArgs("env-123", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetEnvelopeID(context.Background(), id, "env-123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func parcelRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"objectid", "situs_address", "owner_name_1", "owner_name_2",
		"property_class", "total_value", "centroid_lat", "centroid_lng",
	})
}

func TestSearchParcels(t *testing.T) {
	store, mock := newMockStore(t)

	lat, lng, val := 29.96, -90.07, 258500.0
	mock.ExpectQuery(`FROM outreach\.parcels`).
		WithArgs("ESPLANADE", 10).
		WillReturnRows(parcelRows().AddRow(
			int64(101), strPtr("2316 ESPLANADE AVE"), strPtr("SMITH, ALICE B"),
			(*string)(nil), strPtr("RESIDENTIAL"), &val, &lat, &lng,
		))

	parcels, err := store.SearchParcels(context.Background(), "ESPLANADE", 0)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Equal(t, int64(101), parcels[0].ObjectID)
	assert.Equal(t, "2316 ESPLANADE AVE", *parcels[0].SitusAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchParcels_ClampsLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM outreach\.parcels`).
		WithArgs("MAGAZINE", 10).
		WillReturnRows(parcelRows())

	_, err := store.SearchParcels(context.Background(), "MAGAZINE", 5000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetParcel_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM outreach\.parcels`).
		WithArgs(int64(9999)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetParcel(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
