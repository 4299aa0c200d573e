package parcel

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadShapefile reads a county parcel shapefile export and returns rows in
// the same persisted shape the API transform produces. It is the offline
// alternative to the range-query ingest: geometry goes through the identical
// centroid and [lat,lng]-swap rules, so either source converges to the same
// store state.
func ReadShapefile(path string) ([]Row, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parcel: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map. DBF field names are NUL-padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}

	attr := func(name string) *string {
		idx, ok := fieldIdx[name]
		if !ok {
			return nil
		}
		val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		if val == "" {
			return nil
		}
		return &val
	}

	var rows []Row
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		objectID := parseInt(attr("OBJECTID"))
		if objectID == 0 {
			skipped++
			continue
		}

		// DBF caps column names at 10 characters, so county exports carry
		// the truncated forms of the API attribute names.
		row := Row{
			ObjectID:      objectID,
			SitusAddress:  attr("SITUS_ADDR"),
			OwnerName1:    attr("OWNER_NA_1"),
			OwnerName2:    attr("OWNER_NA_2"),
			TaxBillNumber: attr("TAX_BILL_N"),
			PropertyClass: attr("PROPERTY_C"),
			LandValue:     parseFloat(attr("LAND_VALUE")),
			BuildingValue: parseFloat(attr("BUILDING_V")),
			TotalValue:    parseFloat(attr("TOTAL_VALU")),
			Frontage:      parseFloat(attr("FRONTAGE")),
			Depth:         parseFloat(attr("DEPTH")),
			AreaSqft:      parseFloat(attr("AREA_SQFT")),
		}

		if poly, ok := shape.(*shp.Polygon); ok {
			applyRing(&row, exteriorRing(poly))
		}

		rows = append(rows, row)
	}

	if skipped > 0 {
		zap.L().Debug("parcel: skipped shapefile records without OBJECTID",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return rows, nil
}

// exteriorRing converts a shapefile polygon's first part into an ordered
// [lng,lat] vertex list. Degenerate parts (fewer than three vertices, or
// collinear points enclosing zero area) are dropped so junk geometry never
// feeds a centroid. The area check runs on a closed go-geom linear ring;
// the emitted vertices are the part's own, open or closed as exported.
func exteriorRing(poly *shp.Polygon) [][]float64 {
	if poly == nil || poly.NumParts == 0 || len(poly.Points) == 0 {
		return nil
	}

	start := poly.Parts[0]
	end := int32(len(poly.Points))
	if poly.NumParts > 1 {
		end = poly.Parts[1]
	}
	if end-start < 3 {
		return nil
	}

	flat := make([]float64, 0, (end-start+1)*2)
	for i := start; i < end; i++ {
		flat = append(flat, poly.Points[i].X, poly.Points[i].Y)
	}
	if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
		flat = append(flat, flat[0], flat[1])
	}

	if geom.NewLinearRingFlat(geom.XY, flat).Area() == 0 {
		return nil
	}

	ring := make([][]float64, 0, end-start)
	for i := start; i < end; i++ {
		ring = append(ring, []float64{poly.Points[i].X, poly.Points[i].Y})
	}
	return ring
}

func parseInt(s *string) int64 {
	if s == nil {
		return 0
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &f
}
