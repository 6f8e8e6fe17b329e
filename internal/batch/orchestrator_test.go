package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/persona"
	"github.com/gridatlas/siterank-cli/internal/scoring"
	"github.com/gridatlas/siterank-cli/internal/spatial"
	"github.com/gridatlas/siterank-cli/internal/tnuos"
)

type stubSource struct {
	sets map[spatial.Category]catalog.FeatureSet
}

func (s stubSource) Load(_ context.Context, cat spatial.Category) (catalog.FeatureSet, error) {
	return s.sets[cat], nil
}

func testOrchestrator(t *testing.T, concurrency int) *Orchestrator {
	t.Helper()

	source := stubSource{sets: map[spatial.Category]catalog.FeatureSet{
		spatial.CategorySubstation: {Points: []catalog.PointRecord{
			{ID: "sub-a", Lat: 52.00, Lon: -1.50},
		}},
	}}
	cache, err := catalog.NewCache(time.Hour, func(ctx context.Context) (*catalog.Catalog, error) {
		return catalog.Build(ctx, source, catalog.Config{CellSizeDeg: 0.5})
	})
	require.NoError(t, err)

	registry, err := persona.NewRegistry(persona.Defaults())
	require.NoError(t, err)

	zones, err := tnuos.NewTable(tnuos.DefaultZones())
	require.NoError(t, err)

	engine, err := scoring.NewEngine(cache, registry, zones, scoring.DefaultConfig())
	require.NoError(t, err)

	orch, err := New(engine, concurrency)
	require.NoError(t, err)
	return orch
}

func validInput(id string, capMW float64) scoring.ProjectInput {
	return scoring.ProjectInput{
		ProjectID:  id,
		Coord:      spatial.Coordinate{Lat: 52.01, Lon: -1.49},
		CapacityMW: capMW,
		Technology: "solar",
		Stage:      "consented",
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	orch := testOrchestrator(t, 4)

	inputs := make([]scoring.ProjectInput, 0, 10)
	for i := 0; i < 9; i++ {
		inputs = append(inputs, validInput(fmt.Sprintf("proj-%02d", i), 50+float64(i)*10))
	}
	inputs = append(inputs, validInput("proj-bad", -5))

	report, err := orch.Run(context.Background(), inputs, "utility-developer", scoring.MethodWeightedSum)
	require.NoError(t, err)

	assert.Len(t, report.Results, 9)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "proj-bad", report.Failures[0].ProjectID)
	assert.Contains(t, report.Failures[0].Reason, "negative")
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, scoring.MethodWeightedSum, report.Method)
}

func TestRunSortsByScoreDescending(t *testing.T) {
	orch := testOrchestrator(t, 2)

	inputs := []scoring.ProjectInput{
		validInput("small", 5),
		validInput("ideal", 150), // utility-developer ideal capacity
		validInput("mid", 60),
	}

	report, err := orch.Run(context.Background(), inputs, "utility-developer", scoring.MethodWeightedSum)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	for i := 1; i < len(report.Results); i++ {
		assert.GreaterOrEqual(t, report.Results[i-1].Score, report.Results[i].Score)
	}
	assert.Equal(t, "ideal", report.Results[0].ProjectID)
}

func TestRunTOPSIS(t *testing.T) {
	orch := testOrchestrator(t, 4)

	inputs := []scoring.ProjectInput{
		validInput("a", 150),
		validInput("b", 150),
		{
			ProjectID:  "remote",
			Coord:      spatial.Coordinate{Lat: 57.5, Lon: -4.0},
			CapacityMW: 150,
			Technology: "solar",
			Stage:      "concept",
		},
	}

	report, err := orch.Run(context.Background(), inputs, "utility-developer", scoring.MethodTOPSIS)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, scoring.MethodTOPSIS, report.Method)

	// Identical projects a and b must score identically under TOPSIS.
	byID := map[string]float64{}
	for _, r := range report.Results {
		byID[r.ProjectID] = r.Score
	}
	assert.InDelta(t, byID["a"], byID["b"], 1e-9)
	assert.Less(t, byID["remote"], byID["a"])
}

func TestRunUnknownPersona(t *testing.T) {
	orch := testOrchestrator(t, 2)
	_, err := orch.Run(context.Background(), []scoring.ProjectInput{validInput("p", 100)}, "nobody", scoring.MethodWeightedSum)
	assert.Error(t, err)
}

func TestRunUnknownMethod(t *testing.T) {
	orch := testOrchestrator(t, 2)
	_, err := orch.Run(context.Background(), []scoring.ProjectInput{validInput("p", 100)}, "utility-developer", scoring.Method("ahp"))
	assert.ErrorContains(t, err, "unknown method")
}

func TestRunEmptyBatch(t *testing.T) {
	orch := testOrchestrator(t, 2)
	report, err := orch.Run(context.Background(), nil, "utility-developer", scoring.MethodWeightedSum)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Empty(t, report.Failures)
}

func TestRunCancelled(t *testing.T) {
	orch := testOrchestrator(t, 1)

	// Warm the catalog first so cancellation hits the fan-out, not the build.
	_, err := orch.Run(context.Background(), nil, "utility-developer", scoring.MethodWeightedSum)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := make([]scoring.ProjectInput, 50)
	for i := range inputs {
		inputs[i] = validInput(fmt.Sprintf("p-%02d", i), 100)
	}
	_, err = orch.Run(ctx, inputs, "utility-developer", scoring.MethodWeightedSum)
	assert.Error(t, err)
}
