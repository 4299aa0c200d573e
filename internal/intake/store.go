package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/crescent-outreach/intake-cli/internal/db"
)

// ErrNotFound is returned when a submission or parcel does not exist.
var ErrNotFound = eris.New("intake: not found")

// Store persists submissions and serves parcel lookups.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertSubmission inserts or replaces a submission by id. Retried POSTs
// with the same client-generated id converge on one row.
func (s *Store) UpsertSubmission(ctx context.Context, sub *Submission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outreach.submissions
		   (id, objectid, respondent_name, email, phone, address,
		    owns_property, is_resident, notes, wants_signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   objectid = excluded.objectid,
		   respondent_name = excluded.respondent_name,
		   email = excluded.email,
		   phone = excluded.phone,
		   address = excluded.address,
		   owns_property = excluded.owns_property,
		   is_resident = excluded.is_resident,
		   notes = excluded.notes,
		   wants_signature = excluded.wants_signature,
		   updated_at = now()`,
		sub.ID, sub.ObjectID, sub.RespondentName, sub.Email, sub.Phone,
		sub.Address, sub.OwnsProperty, sub.IsResident, sub.Notes,
		sub.WantsSignature,
	)
	return eris.Wrapf(err, "intake: upsert submission %s", sub.ID)
}

// GetSubmission fetches one submission by id.
func (s *Store) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	err := s.pool.QueryRow(ctx,
		`SELECT id, objectid, respondent_name, email, phone, address,
		        owns_property, is_resident, notes, wants_signature,
		        envelope_id, created_at, updated_at
		 FROM outreach.submissions
		 WHERE id = $1`,
		id,
	).Scan(
		&sub.ID, &sub.ObjectID, &sub.RespondentName, &sub.Email, &sub.Phone,
		&sub.Address, &sub.OwnsProperty, &sub.IsResident, &sub.Notes,
		&sub.WantsSignature, &sub.EnvelopeID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "intake: get submission %s", id)
	}
	return &sub, nil
}

// SetEnvelopeID records the signature envelope created for a submission.
func (s *Store) SetEnvelopeID(ctx context.Context, id uuid.UUID, envelopeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE outreach.submissions
		 SET envelope_id = $1, updated_at = now()
		 WHERE id = $2`,
		envelopeID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "intake: set envelope for %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchParcels finds parcels whose situs address matches q, for the intake
// form's address autocomplete. Matching is a case-insensitive substring
// search; limit is clamped to [1, 50].
func (s *Store) SearchParcels(ctx context.Context, q string, limit int) ([]Parcel, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT objectid, situs_address, owner_name_1, owner_name_2,
		        property_class, total_value, centroid_lat, centroid_lng
		 FROM outreach.parcels
		 WHERE situs_address ILIKE '%' || $1 || '%'
		 ORDER BY situs_address
		 LIMIT $2`,
		q, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: search parcels %q", q)
	}
	defer rows.Close()

	var parcels []Parcel
	for rows.Next() {
		var p Parcel
		if err := rows.Scan(
			&p.ObjectID, &p.SitusAddress, &p.OwnerName1, &p.OwnerName2,
			&p.PropertyClass, &p.TotalValue, &p.CentroidLat, &p.CentroidLng,
		); err != nil {
			return nil, eris.Wrap(err, "intake: scan parcel")
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

// GetParcel fetches one parcel by its source objectid.
func (s *Store) GetParcel(ctx context.Context, objectID int64) (*Parcel, error) {
	var p Parcel
	err := s.pool.QueryRow(ctx,
		`SELECT objectid, situs_address, owner_name_1, owner_name_2,
		        property_class, total_value, centroid_lat, centroid_lng
		 FROM outreach.parcels
		 WHERE objectid = $1`,
		objectID,
	).Scan(
		&p.ObjectID, &p.SitusAddress, &p.OwnerName1, &p.OwnerName2,
		&p.PropertyClass, &p.TotalValue, &p.CentroidLat, &p.CentroidLng,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "intake: get parcel %d", objectID)
	}
	return &p, nil
}
