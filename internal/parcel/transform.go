package parcel

import (
	"encoding/json"
	"strings"

	"github.com/crescent-outreach/intake-cli/internal/arcgis"
)

// Transform maps one upstream feature into the persisted row shape. It is
// pure and total: missing or null attributes become nil fields, and a feature
// without geometry yields nil centroid and polygon fields.
func Transform(f arcgis.Feature) Row {
	row := Row{
		ObjectID:      intAttr(f.Attributes, "OBJECTID"),
		SitusAddress:  stringAttr(f.Attributes, "SITUS_ADDRESS"),
		OwnerName1:    stringAttr(f.Attributes, "OWNER_NAME_1"),
		OwnerName2:    stringAttr(f.Attributes, "OWNER_NAME_2"),
		TaxBillNumber: stringAttr(f.Attributes, "TAX_BILL_NUMBER"),
		PropertyClass: stringAttr(f.Attributes, "PROPERTY_CLASS"),
		LandValue:     floatAttr(f.Attributes, "LAND_VALUE"),
		BuildingValue: floatAttr(f.Attributes, "BUILDING_VALUE"),
		TotalValue:    floatAttr(f.Attributes, "TOTAL_VALUE"),
		Frontage:      floatAttr(f.Attributes, "FRONTAGE"),
		Depth:         floatAttr(f.Attributes, "DEPTH"),
		AreaSqft:      floatAttr(f.Attributes, "AREA_SQFT"),
	}

	applyRing(&row, f.Geometry.Ring())
	return row
}

// TransformAll maps a fetched batch into rows, preserving order.
func TransformAll(features []arcgis.Feature) []Row {
	if len(features) == 0 {
		return nil
	}
	rows := make([]Row, len(features))
	for i, f := range features {
		rows[i] = Transform(f)
	}
	return rows
}

// applyRing derives the geometry fields from an exterior ring of [lng,lat]
// vertices. The centroid is the unweighted mean of the ring's vertex
// components, not an area-weighted centroid. The ring is
// re-emitted with components swapped to [lat,lng].
func applyRing(row *Row, ring [][]float64) {
	if len(ring) == 0 {
		return
	}

	coords := make([][2]float64, 0, len(ring))
	var sumLng, sumLat float64
	for _, v := range ring {
		if len(v) < 2 {
			continue
		}
		sumLng += v[0]
		sumLat += v[1]
		coords = append(coords, [2]float64{v[1], v[0]})
	}
	if len(coords) == 0 {
		return
	}

	n := float64(len(coords))
	lat := sumLat / n
	lng := sumLng / n
	row.CentroidLat = &lat
	row.CentroidLng = &lng
	row.PolygonCoords = coords
}

// intAttr extracts an integer attribute; JSON numbers arrive as float64.
func intAttr(attrs map[string]any, key string) int64 {
	switch v := attrs[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// stringAttr extracts a trimmed string attribute; null, missing, or blank
// values become nil.
func stringAttr(attrs map[string]any, key string) *string {
	s, ok := attrs[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// floatAttr extracts a numeric attribute; null or missing values become nil.
func floatAttr(attrs map[string]any, key string) *float64 {
	switch v := attrs[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
