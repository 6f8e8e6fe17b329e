package spatial

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPoint(t *testing.T, id string, lat, lon float64) *PointFeature {
	t.Helper()
	f, err := NewPointFeature(id, CategorySubstation, Coordinate{Lat: lat, Lon: lon}, nil)
	require.NoError(t, err)
	return f
}

func mustLine(t *testing.T, id string, coords ...Coordinate) *LineFeature {
	t.Helper()
	f, err := NewLineFeature(id, CategoryTransmission, coords, nil)
	require.NoError(t, err)
	return f
}

func TestNewGrid_RejectsNonPositiveCellSize(t *testing.T) {
	_, err := NewGrid(0)
	assert.Error(t, err)
	_, err = NewGrid(-0.5)
	assert.Error(t, err)
}

func TestNewPointFeature_RejectsInvalidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"nan lat", math.NaN(), -1.5},
		{"nan lon", 52.0, math.NaN()},
		{"inf lat", math.Inf(1), -1.5},
		{"lat out of range", 94.0, -1.5},
		{"lon out of range", 52.0, 181.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPointFeature("x", CategorySubstation, Coordinate{Lat: tt.lat, Lon: tt.lon}, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewLineFeature_BoundsEncloseAllVertices(t *testing.T) {
	f := mustLine(t, "l1",
		Coordinate{Lat: 52.0, Lon: -2.0},
		Coordinate{Lat: 53.5, Lon: -1.0},
		Coordinate{Lat: 51.0, Lon: -3.0},
	)
	for _, c := range f.Coords {
		assert.GreaterOrEqual(t, c.Lat, f.Bounds.MinLat)
		assert.LessOrEqual(t, c.Lat, f.Bounds.MaxLat)
		assert.GreaterOrEqual(t, c.Lon, f.Bounds.MinLon)
		assert.LessOrEqual(t, c.Lon, f.Bounds.MaxLon)
	}
}

func TestNewLineFeature_RequiresTwoVertices(t *testing.T) {
	_, err := NewLineFeature("short", CategoryTransmission, []Coordinate{{Lat: 52, Lon: -1}}, nil)
	assert.Error(t, err)
}

func TestQueryRadius_ScenarioSubstation(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	require.NoError(t, g.InsertPoint(mustPoint(t, "sub-1", 52.00, -1.50)))

	res := g.QueryRadius(52.01, -1.49, 5)
	require.Len(t, res.Points, 1)
	assert.Equal(t, "sub-1", res.Points[0].Feature.SourceID)
	assert.InDelta(t, 1.3, res.Points[0].DistanceKm, 0.1)
}

func TestQueryRadius_NonPositiveRadiusIsEmpty(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	require.NoError(t, g.InsertPoint(mustPoint(t, "sub-1", 52.00, -1.50)))

	assert.Empty(t, g.QueryRadius(52.0, -1.5, 0).Points)
	assert.Empty(t, g.QueryRadius(52.0, -1.5, -3).Points)
}

func TestQueryRadius_ExcludesFeaturesBeyondRadius(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	require.NoError(t, g.InsertPoint(mustPoint(t, "near", 52.00, -1.50)))
	require.NoError(t, g.InsertPoint(mustPoint(t, "far", 53.00, -1.50))) // ~111 km north

	res := g.QueryRadius(52.0, -1.5, 10)
	require.Len(t, res.Points, 1)
	assert.Equal(t, "near", res.Points[0].Feature.SourceID)
}

func TestQueryRadius_FindsPointAcrossCellBoundary(t *testing.T) {
	// Feature sits just on the far side of a 0.5-degree cell boundary from
	// the query origin; the window must still surface it.
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	require.NoError(t, g.InsertPoint(mustPoint(t, "edge", 52.501, -1.5)))

	res := g.QueryRadius(52.499, -1.5, 5)
	require.Len(t, res.Points, 1)
	assert.Equal(t, "edge", res.Points[0].Feature.SourceID)
}

func TestQueryRadius_LineSpanningManyCells(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	long := mustLine(t, "route-1",
		Coordinate{Lat: 50.0, Lon: -5.0},
		Coordinate{Lat: 55.0, Lon: 0.0},
	)
	require.NoError(t, g.InsertLine(long))

	// Query near the middle of the line.
	res := g.QueryRadius(52.5, -2.5, 25)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "route-1", res.Lines[0].Feature.SourceID)

	// A line indexed into many cells must not be returned twice.
	assert.Equal(t, 1, g.LineCount())
}

func TestQueryRadius_TieBreakBySourceID(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	// Two substations equidistant from the origin: same lat offset north and south.
	require.NoError(t, g.InsertPoint(mustPoint(t, "b-sub", 52.01, -1.50)))
	require.NoError(t, g.InsertPoint(mustPoint(t, "a-sub", 51.99, -1.50)))

	res := g.QueryRadius(52.0, -1.5, 5)
	require.Len(t, res.Points, 2)
	assert.Equal(t, "a-sub", res.Points[0].Feature.SourceID)
	assert.Equal(t, "b-sub", res.Points[1].Feature.SourceID)
}

func TestQueryRadius_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	g, err := NewGrid(0.5)
	require.NoError(t, err)

	// Synthetic UK-ish extent.
	var points []*PointFeature
	for i := 0; i < 400; i++ {
		lat := 49.5 + rng.Float64()*9.0
		lon := -7.5 + rng.Float64()*9.0
		f := mustPoint(t, fmt.Sprintf("p-%03d", i), lat, lon)
		points = append(points, f)
		require.NoError(t, g.InsertPoint(f))
	}
	var lines []*LineFeature
	for i := 0; i < 80; i++ {
		lat := 49.5 + rng.Float64()*9.0
		lon := -7.5 + rng.Float64()*9.0
		f := mustLine(t, fmt.Sprintf("l-%03d", i),
			Coordinate{Lat: lat, Lon: lon},
			Coordinate{Lat: lat + rng.Float64()*1.2 - 0.6, Lon: lon + rng.Float64()*1.2 - 0.6},
			Coordinate{Lat: lat + rng.Float64()*1.2 - 0.6, Lon: lon + rng.Float64()*1.2 - 0.6},
		)
		lines = append(lines, f)
		require.NoError(t, g.InsertLine(f))
	}

	for q := 0; q < 25; q++ {
		origin := Coordinate{Lat: 49.5 + rng.Float64()*9.0, Lon: -7.5 + rng.Float64()*9.0}
		radius := 5 + rng.Float64()*120

		res := g.QueryRadius(origin.Lat, origin.Lon, radius)

		wantPoints := make(map[string]bool)
		for _, f := range points {
			if HaversineKm(origin, f.Coord) <= radius {
				wantPoints[f.SourceID] = true
			}
		}
		gotPoints := make(map[string]bool)
		for _, h := range res.Points {
			gotPoints[h.Feature.SourceID] = true
		}
		assert.Equal(t, wantPoints, gotPoints, "points for query %d", q)

		wantLines := make(map[string]bool)
		for _, f := range lines {
			if PointToLineKm(origin, f.Coords) <= radius {
				wantLines[f.SourceID] = true
			}
		}
		gotLines := make(map[string]bool)
		for _, h := range res.Lines {
			gotLines[h.Feature.SourceID] = true
		}
		assert.Equal(t, wantLines, gotLines, "lines for query %d", q)
	}
}

func TestQueryRadius_ResultsSortedByDistance(t *testing.T) {
	g, err := NewGrid(0.5)
	require.NoError(t, err)
	require.NoError(t, g.InsertPoint(mustPoint(t, "far", 52.20, -1.50)))
	require.NoError(t, g.InsertPoint(mustPoint(t, "near", 52.02, -1.50)))
	require.NoError(t, g.InsertPoint(mustPoint(t, "mid", 52.10, -1.50)))

	res := g.QueryRadius(52.0, -1.5, 50)
	require.Len(t, res.Points, 3)
	assert.Equal(t, "near", res.Points[0].Feature.SourceID)
	assert.Equal(t, "mid", res.Points[1].Feature.SourceID)
	assert.Equal(t, "far", res.Points[2].Feature.SourceID)
}
