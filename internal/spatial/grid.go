package spatial

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// distanceEpsilonKm is the tolerance under which two hit distances are
// considered equal for tie-breaking purposes.
const distanceEpsilonKm = 1e-9

type cellKey struct {
	Row int
	Col int
}

type cell struct {
	points []*PointFeature
	lines  []*LineFeature
}

// Grid is a fixed-cell-size spatial index. Points are stored in the single
// cell containing them; lines are stored in every cell their bounding box
// overlaps. Lookup cost is proportional to the query window, not the total
// feature count.
//
// Grid is not safe for concurrent mutation; build it fully, then share it
// read-only.
type Grid struct {
	cellSizeDeg float64
	cells       map[cellKey]*cell
	pointCount  int
	lineCount   int
}

// NewGrid creates an empty grid with the given cell size in degrees.
func NewGrid(cellSizeDeg float64) (*Grid, error) {
	if cellSizeDeg <= 0 || math.IsNaN(cellSizeDeg) {
		return nil, eris.Errorf("spatial: cell size must be positive, got %v", cellSizeDeg)
	}
	return &Grid{
		cellSizeDeg: cellSizeDeg,
		cells:       make(map[cellKey]*cell),
	}, nil
}

// CellSizeDeg returns the configured cell size in degrees.
func (g *Grid) CellSizeDeg() float64 { return g.cellSizeDeg }

// PointCount returns the number of indexed point features.
func (g *Grid) PointCount() int { return g.pointCount }

// LineCount returns the number of indexed line features.
func (g *Grid) LineCount() int { return g.lineCount }

func (g *Grid) keyFor(lat, lon float64) cellKey {
	return cellKey{
		Row: int(math.Floor(lat / g.cellSizeDeg)),
		Col: int(math.Floor(lon / g.cellSizeDeg)),
	}
}

func (g *Grid) cellAt(key cellKey) *cell {
	c, ok := g.cells[key]
	if !ok {
		c = &cell{}
		g.cells[key] = c
	}
	return c
}

// InsertPoint indexes a point feature into its containing cell.
func (g *Grid) InsertPoint(f *PointFeature) error {
	if f == nil {
		return eris.New("spatial: nil point feature")
	}
	if !f.Coord.Valid() {
		return eris.Errorf("spatial: invalid coordinate for point %s", f.SourceID)
	}
	c := g.cellAt(g.keyFor(f.Coord.Lat, f.Coord.Lon))
	c.points = append(c.points, f)
	g.pointCount++
	return nil
}

// InsertLine indexes a line feature into every cell its bounding box
// overlaps. Long lines land in many cells; that is the accepted trade for a
// simple query path.
func (g *Grid) InsertLine(f *LineFeature) error {
	if f == nil {
		return eris.New("spatial: nil line feature")
	}
	for _, c := range f.Coords {
		if !c.Valid() {
			return eris.Errorf("spatial: invalid coordinate in line %s", f.SourceID)
		}
	}
	minKey := g.keyFor(f.Bounds.MinLat, f.Bounds.MinLon)
	maxKey := g.keyFor(f.Bounds.MaxLat, f.Bounds.MaxLon)
	for row := minKey.Row; row <= maxKey.Row; row++ {
		for col := minKey.Col; col <= maxKey.Col; col++ {
			c := g.cellAt(cellKey{Row: row, Col: col})
			c.lines = append(c.lines, f)
		}
	}
	g.lineCount++
	return nil
}

// PointHit is a point feature returned from a radius query with its exact
// distance from the query origin.
type PointHit struct {
	Feature    *PointFeature
	DistanceKm float64
}

// LineHit is a line feature returned from a radius query with the minimum
// distance from the query origin to any of its segments.
type LineHit struct {
	Feature    *LineFeature
	DistanceKm float64
}

// RadiusResult holds the features within a query radius, sorted by distance
// ascending (source id ascending on equal distance).
type RadiusResult struct {
	Points []PointHit
	Lines  []LineHit
}

// QueryRadius returns every indexed feature whose exact distance from
// (lat, lon) is at most radiusKm. Candidates come from the cells covering
// the degree window around the origin; each candidate is then filtered by
// haversine (points) or point-to-segment (lines) distance. A non-positive
// radius returns an empty result.
func (g *Grid) QueryRadius(lat, lon, radiusKm float64) RadiusResult {
	var res RadiusResult
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		return res
	}

	origin := Coordinate{Lat: lat, Lon: lon}
	latDelta := radiusKm * DegreesPerKM
	// Longitude degrees shrink by cos(lat); widen the window so the
	// candidate set never misses a feature inside the true radius.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.1 {
		cosLat = 0.1
	}
	lonDelta := latDelta / cosLat

	minKey := g.keyFor(lat-latDelta, lon-lonDelta)
	maxKey := g.keyFor(lat+latDelta, lon+lonDelta)

	seenPoints := make(map[string]bool)
	seenLines := make(map[string]bool)

	for row := minKey.Row; row <= maxKey.Row; row++ {
		for col := minKey.Col; col <= maxKey.Col; col++ {
			c, ok := g.cells[cellKey{Row: row, Col: col}]
			if !ok {
				continue
			}
			for _, pf := range c.points {
				if seenPoints[pf.SourceID] {
					continue
				}
				seenPoints[pf.SourceID] = true
				if d := HaversineKm(origin, pf.Coord); d <= radiusKm {
					res.Points = append(res.Points, PointHit{Feature: pf, DistanceKm: d})
				}
			}
			for _, lf := range c.lines {
				if seenLines[lf.SourceID] {
					continue
				}
				seenLines[lf.SourceID] = true
				if d := PointToLineKm(origin, lf.Coords); d <= radiusKm {
					res.Lines = append(res.Lines, LineHit{Feature: lf, DistanceKm: d})
				}
			}
		}
	}

	sort.Slice(res.Points, func(i, j int) bool {
		di, dj := res.Points[i].DistanceKm, res.Points[j].DistanceKm
		if math.Abs(di-dj) < distanceEpsilonKm {
			return res.Points[i].Feature.SourceID < res.Points[j].Feature.SourceID
		}
		return di < dj
	})
	sort.Slice(res.Lines, func(i, j int) bool {
		di, dj := res.Lines[i].DistanceKm, res.Lines[j].DistanceKm
		if math.Abs(di-dj) < distanceEpsilonKm {
			return res.Lines[i].Feature.SourceID < res.Lines[j].Feature.SourceID
		}
		return di < dj
	})
	return res
}
