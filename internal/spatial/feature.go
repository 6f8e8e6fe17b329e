// Package spatial implements a fixed-size grid-cell index over point and
// polyline infrastructure features, with radius queries filtered by exact
// distance.
package spatial

import (
	"math"

	"github.com/rotisserie/eris"
)

// Category identifies an infrastructure feature class.
type Category string

const (
	CategoryTransmission Category = "transmission"
	CategorySubstation   Category = "substation"
	CategoryFiber        Category = "fiber"
	CategoryIXP          Category = "ixp"
	CategoryWater        Category = "water"
	CategoryGSP          Category = "gsp"
)

// Categories lists every known feature category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryTransmission,
		CategorySubstation,
		CategoryFiber,
		CategoryIXP,
		CategoryWater,
		CategoryGSP,
	}
}

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is a finite lat/lon pair within
// plausible bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// PointFeature is an immutable point record (substation, IXP, water intake).
type PointFeature struct {
	SourceID string
	Category Category
	Coord    Coordinate
	Attrs    map[string]string
}

// NewPointFeature validates the coordinate and constructs a point feature.
func NewPointFeature(sourceID string, cat Category, coord Coordinate, attrs map[string]string) (*PointFeature, error) {
	if !coord.Valid() {
		return nil, eris.Errorf("spatial: invalid coordinate (%v, %v) for point %s", coord.Lat, coord.Lon, sourceID)
	}
	return &PointFeature{SourceID: sourceID, Category: cat, Coord: coord, Attrs: attrs}, nil
}

// LineFeature is an immutable polyline record (transmission line, fiber
// route, GSP boundary segment). Bounds is computed once at construction and
// always encloses every vertex.
type LineFeature struct {
	SourceID string
	Category Category
	Coords   []Coordinate
	Bounds   BBox
	Attrs    map[string]string
}

// NewLineFeature validates the vertices, derives the bounding box, and
// constructs a line feature. At least two vertices are required.
func NewLineFeature(sourceID string, cat Category, coords []Coordinate, attrs map[string]string) (*LineFeature, error) {
	if len(coords) < 2 {
		return nil, eris.Errorf("spatial: line %s needs at least 2 vertices, got %d", sourceID, len(coords))
	}
	bounds := BBox{MinLat: math.MaxFloat64, MinLon: math.MaxFloat64, MaxLat: -math.MaxFloat64, MaxLon: -math.MaxFloat64}
	for _, c := range coords {
		if !c.Valid() {
			return nil, eris.Errorf("spatial: invalid coordinate (%v, %v) in line %s", c.Lat, c.Lon, sourceID)
		}
		bounds.MinLat = math.Min(bounds.MinLat, c.Lat)
		bounds.MinLon = math.Min(bounds.MinLon, c.Lon)
		bounds.MaxLat = math.Max(bounds.MaxLat, c.Lat)
		bounds.MaxLon = math.Max(bounds.MaxLon, c.Lon)
	}
	return &LineFeature{SourceID: sourceID, Category: cat, Coords: coords, Bounds: bounds, Attrs: attrs}, nil
}
