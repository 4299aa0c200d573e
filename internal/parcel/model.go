// Package parcel implements the parcel ingestion pipeline: range planning,
// record transformation, batched idempotent upserts, and the coordinator
// that overlaps upstream fetches with store writes.
package parcel

import (
	"encoding/json"
	"fmt"
	"time"
)

// Range is a half-open interval [Start, End) of upstream OBJECTIDs,
// processed as one fetch/upsert unit.
type Range struct {
	Start int64
	End   int64
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Row is the persisted representation of one parcel feature. Pointer fields
// are NULL in the store when the source attribute was missing or null.
// PolygonCoords holds the exterior ring as [lat,lng] pairs (component order
// swapped from the upstream [lng,lat] convention) for direct use by mapping
// libraries; it is nil when the source carried no geometry.
type Row struct {
	ObjectID      int64
	SitusAddress  *string
	OwnerName1    *string
	OwnerName2    *string
	TaxBillNumber *string
	PropertyClass *string
	LandValue     *float64
	BuildingValue *float64
	TotalValue    *float64
	Frontage      *float64
	Depth         *float64
	AreaSqft      *float64
	CentroidLat   *float64
	CentroidLng   *float64
	PolygonCoords [][2]float64
}

// Columns is the outreach.parcels column list in row-value order.
var Columns = []string{
	"objectid",
	"situs_address",
	"owner_name_1",
	"owner_name_2",
	"tax_bill_number",
	"property_class",
	"land_value",
	"building_value",
	"total_value",
	"frontage",
	"depth",
	"area_sqft",
	"centroid_lat",
	"centroid_lng",
	"polygon_coords",
	"last_updated",
}

// Values flattens the row for a bulk write, stamping last_updated with the
// given time. polygon_coords is serialized to JSON text (jsonb in Postgres,
// TEXT in SQLite).
func (r Row) Values(now time.Time) []any {
	var polygon *string
	if r.PolygonCoords != nil {
		b, _ := json.Marshal(r.PolygonCoords)
		s := string(b)
		polygon = &s
	}
	return []any{
		r.ObjectID,
		r.SitusAddress,
		r.OwnerName1,
		r.OwnerName2,
		r.TaxBillNumber,
		r.PropertyClass,
		r.LandValue,
		r.BuildingValue,
		r.TotalValue,
		r.Frontage,
		r.Depth,
		r.AreaSqft,
		r.CentroidLat,
		r.CentroidLng,
		polygon,
		now,
	}
}
