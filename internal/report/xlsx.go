// Package report builds canvassing exports from collected submissions.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/crescent-outreach/intake-cli/internal/db"
)

// WalkListRow is one line of the canvassing walk list: a submission joined
// to its matched parcel when one exists.
type WalkListRow struct {
	RespondentName string
	Address        string
	Email          *string
	Phone          *string
	OwnsProperty   bool
	IsResident     bool
	OwnerName      *string
	PropertyClass  *string
	CentroidLat    *float64
	CentroidLng    *float64
	SubmittedAt    time.Time
}

// walkListHeader is the column order of the exported sheet.
var walkListHeader = []string{
	"Respondent", "Address", "Email", "Phone",
	"Owns Property", "Resident", "Owner of Record", "Property Class",
	"Lat", "Lng", "Submitted",
}

// FetchWalkList loads submissions joined to parcels, oldest first so teams
// walk in intake order.
func FetchWalkList(ctx context.Context, pool db.Pool) ([]WalkListRow, error) {
	rows, err := pool.Query(ctx,
		`SELECT s.respondent_name, s.address, s.email, s.phone,
		        s.owns_property, s.is_resident,
		        p.owner_name_1, p.property_class, p.centroid_lat, p.centroid_lng,
		        s.created_at
		 FROM outreach.submissions s
		 LEFT JOIN outreach.parcels p ON p.objectid = s.objectid
		 ORDER BY s.created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "report: query walk list")
	}
	defer rows.Close()

	var list []WalkListRow
	for rows.Next() {
		var r WalkListRow
		if err := rows.Scan(
			&r.RespondentName, &r.Address, &r.Email, &r.Phone,
			&r.OwnsProperty, &r.IsResident,
			&r.OwnerName, &r.PropertyClass, &r.CentroidLat, &r.CentroidLng,
			&r.SubmittedAt,
		); err != nil {
			return nil, eris.Wrap(err, "report: scan walk list row")
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// WriteWalkList writes the walk list as a single-sheet xlsx workbook.
func WriteWalkList(path string, list []WalkListRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Walk List")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range walkListHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range list {
		row := sheet.AddRow()
		row.AddCell().SetString(r.RespondentName)
		row.AddCell().SetString(r.Address)
		row.AddCell().SetString(strOrEmpty(r.Email))
		row.AddCell().SetString(strOrEmpty(r.Phone))
		row.AddCell().SetString(yesNo(r.OwnsProperty))
		row.AddCell().SetString(yesNo(r.IsResident))
		row.AddCell().SetString(strOrEmpty(r.OwnerName))
		row.AddCell().SetString(strOrEmpty(r.PropertyClass))
		row.AddCell().SetString(coordOrEmpty(r.CentroidLat))
		row.AddCell().SetString(coordOrEmpty(r.CentroidLng))
		row.AddCell().SetString(r.SubmittedAt.Format("2006-01-02 15:04"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}

	zap.L().Info("report: walk list written",
		zap.String("path", path),
		zap.Int("rows", len(list)),
	)
	return nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func coordOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *f)
}
