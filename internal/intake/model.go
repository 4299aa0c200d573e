// Package intake implements the questionnaire intake HTTP API: submission
// capture, parcel lookup for form pre-fill, and the e-signature hand-off.
package intake

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Submission is one questionnaire response, keyed by a client-generated UUID
// so a retried POST lands on the same row.
type Submission struct {
	ID             uuid.UUID `json:"id"`
	ObjectID       *int64    `json:"objectid,omitempty"` // matched parcel, if any
	RespondentName string    `json:"respondent_name"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Address        string    `json:"address"`
	OwnsProperty   bool      `json:"owns_property"`
	IsResident     bool      `json:"is_resident"`
	Notes          *string   `json:"notes,omitempty"`
	WantsSignature bool      `json:"wants_signature"`
	EnvelopeID     *string   `json:"envelope_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Parcel is the read-side projection of outreach.parcels served to the
// intake form for autocomplete and pre-fill.
type Parcel struct {
	ObjectID      int64    `json:"objectid"`
	SitusAddress  *string  `json:"situs_address,omitempty"`
	OwnerName1    *string  `json:"owner_name_1,omitempty"`
	OwnerName2    *string  `json:"owner_name_2,omitempty"`
	PropertyClass *string  `json:"property_class,omitempty"`
	TotalValue    *float64 `json:"total_value,omitempty"`
	CentroidLat   *float64 `json:"centroid_lat,omitempty"`
	CentroidLng   *float64 `json:"centroid_lng,omitempty"`
}

// Normalize trims whitespace and display-cases the respondent name and
// address. Source records are SHOUTING-case county data; submissions should
// read like a person wrote them. A Caser is stateful, so each call builds
// its own.
func (s *Submission) Normalize() {
	titleCaser := cases.Title(language.AmericanEnglish)
	s.RespondentName = titleCaser.String(strings.TrimSpace(s.RespondentName))
	s.Address = strings.TrimSpace(s.Address)
	if s.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*s.Email))
		s.Email = &e
	}
	if s.Phone != nil {
		p := strings.TrimSpace(*s.Phone)
		s.Phone = &p
	}
}

// Validate checks required fields, returning a list of problems suitable for
// a 400 response body.
func (s *Submission) Validate() []string {
	var problems []string
	if s.ID == uuid.Nil {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(s.RespondentName) == "" {
		problems = append(problems, "respondent_name is required")
	}
	if strings.TrimSpace(s.Address) == "" {
		problems = append(problems, "address is required")
	}
	if s.Email != nil && !strings.Contains(*s.Email, "@") {
		problems = append(problems, "email is malformed")
	}
	return problems
}
