package arcgis

import "fmt"

// Feature is one record returned by an ArcGIS layer query: a flat attribute
// set plus an optional polygon geometry.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
}

// Geometry holds esriGeometryPolygon rings. Each ring is an ordered list of
// [x,y] = [lng,lat] vertex pairs in the requested spatial reference.
type Geometry struct {
	Rings [][][]float64 `json:"rings"`
}

// Ring returns the first (exterior) ring, or nil if the geometry is empty.
func (g *Geometry) Ring() [][]float64 {
	if g == nil || len(g.Rings) == 0 || len(g.Rings[0]) == 0 {
		return nil
	}
	return g.Rings[0]
}

// apiError is the error object ArcGIS embeds in an HTTP 200 response body.
type apiError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("arcgis: upstream error %d: %s", e.Code, e.Message)
}

// queryResponse is the layer query response envelope. A response carrying an
// Error payload is a fetch failure even when the HTTP status is 200.
type queryResponse struct {
	Features []Feature `json:"features"`
	Error    *apiError `json:"error,omitempty"`
}
