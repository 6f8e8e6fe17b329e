package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/persona"
	"github.com/gridatlas/siterank-cli/internal/spatial"
	"github.com/gridatlas/siterank-cli/internal/tnuos"
)

func TestScoreCapacity(t *testing.T) {
	env := persona.CapacityEnvelope{MinMW: 50, IdealMW: 100, MaxMW: 300}

	tests := []struct {
		name string
		cap  float64
		want float64
	}{
		{"ideal scores full", 100, 100},
		{"zero scores zero", 0, 0},
		{"negative scores zero", -5, 0},
		{"at min scores edge", 50, 70},
		{"at max scores edge", 300, 70},
		{"midway min to ideal", 75, 85},
		{"midway ideal to max", 200, 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreCapacity(tt.cap, env), 1e-9)
		})
	}

	t.Run("below min stays above floor", func(t *testing.T) {
		got := scoreCapacity(10, env)
		assert.Greater(t, got, 20.0)
		assert.Less(t, got, 70.0)
	})
	t.Run("far above max hits floor", func(t *testing.T) {
		assert.InDelta(t, 20.0, scoreCapacity(5000, env), 1e-9)
	})
	t.Run("monotone toward ideal", func(t *testing.T) {
		assert.Less(t, scoreCapacity(60, env), scoreCapacity(80, env))
		assert.Less(t, scoreCapacity(250, env), scoreCapacity(150, env))
	})
}

func TestDecayScore(t *testing.T) {
	cfg := DecayConfig{CutoffKm: 25, Floor: 15}

	t.Run("zero distance scores full", func(t *testing.T) {
		assert.Equal(t, 100.0, decayScore(0, true, cfg))
	})
	t.Run("not found scores floor", func(t *testing.T) {
		assert.Equal(t, 15.0, decayScore(0, false, cfg))
	})
	t.Run("monotone decreasing", func(t *testing.T) {
		prev := 100.0
		for _, d := range []float64{1, 5, 10, 20, 40, 80} {
			got := decayScore(d, true, cfg)
			assert.Less(t, got, prev, "distance %v", d)
			prev = got
		}
	})
	t.Run("near floor beyond cutoff", func(t *testing.T) {
		got := decayScore(cfg.CutoffKm, true, cfg)
		assert.InDelta(t, cfg.Floor, got, 11.0)
		assert.GreaterOrEqual(t, got, cfg.Floor)
	})
	t.Run("never below floor", func(t *testing.T) {
		assert.GreaterOrEqual(t, decayScore(500, true, cfg), cfg.Floor)
	})
}

func TestScoreStage(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100.0, cfg.scoreStage("operational"))
	assert.Equal(t, 75.0, cfg.scoreStage("consented"))
	assert.Equal(t, cfg.UnknownStageScore, cfg.scoreStage("mystery-code"))
	assert.Equal(t, cfg.UnknownStageScore, cfg.scoreStage(""))
}

func TestScoreTechnology(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("per-class tables differ", func(t *testing.T) {
		dc := cfg.scoreTechnology("wind", persona.ClassDataCenter)
		dev := cfg.scoreTechnology("wind", persona.ClassDeveloper)
		assert.NotEqual(t, dc, dev)
	})
	t.Run("bounded 60 to 100", func(t *testing.T) {
		for _, table := range cfg.TechScores {
			for tech, s := range table {
				assert.GreaterOrEqual(t, s, 60.0, tech)
				assert.LessOrEqual(t, s, 100.0, tech)
			}
		}
	})
	t.Run("unknown technology falls back", func(t *testing.T) {
		assert.Equal(t, cfg.UnknownTechScore, cfg.scoreTechnology("fusion", persona.ClassDeveloper))
	})
}

func TestScoreProximityPair(t *testing.T) {
	cfg := DecayConfig{CutoffKm: 25, Floor: 15}
	near := catalog.NearestResult{Category: spatial.CategorySubstation, Found: true, DistanceKm: 2}
	far := catalog.NearestResult{Category: spatial.CategoryTransmission, Found: true, DistanceKm: 20}
	missing := catalog.NearestResult{Category: spatial.CategoryTransmission}

	t.Run("closer of two wins", func(t *testing.T) {
		both := scoreProximityPair(near, far, cfg)
		assert.Equal(t, decayScore(2, true, cfg), both)
		assert.Equal(t, both, scoreProximityPair(far, near, cfg))
	})
	t.Run("one missing uses the other", func(t *testing.T) {
		assert.Equal(t, decayScore(20, true, cfg), scoreProximityPair(missing, far, cfg))
	})
	t.Run("both missing scores floor", func(t *testing.T) {
		assert.Equal(t, cfg.Floor, scoreProximityPair(missing, missing, cfg))
	})
}

func TestScoreLCOE(t *testing.T) {
	cfg := DefaultConfig()
	f := func(v float64) *float64 { return &v }

	t.Run("best baseline scores full", func(t *testing.T) {
		assert.Equal(t, 100.0, cfg.scoreLCOE(f(30), f(0.5), "solar"))
	})
	t.Run("higher baseline scores lower", func(t *testing.T) {
		cheap := cfg.scoreLCOE(f(40), nil, "wind")
		dear := cfg.scoreLCOE(f(80), nil, "wind")
		assert.Greater(t, cheap, dear)
	})
	t.Run("quality improves score", func(t *testing.T) {
		poor := cfg.scoreLCOE(f(50), f(0.1), "solar")
		rich := cfg.scoreLCOE(f(50), f(0.9), "solar")
		assert.Greater(t, rich, poor)
	})
	t.Run("nil baseline uses technology default", func(t *testing.T) {
		assert.Equal(t, cfg.scoreLCOE(f(45), nil, "solar"), cfg.scoreLCOE(nil, nil, "solar"))
	})
	t.Run("unknown technology uses fallback baseline", func(t *testing.T) {
		assert.Equal(t, cfg.scoreLCOE(f(60), nil, ""), cfg.scoreLCOE(nil, nil, "fusion"))
	})
	t.Run("clamped to range", func(t *testing.T) {
		assert.Equal(t, 0.0, cfg.scoreLCOE(f(500), f(0), "solar"))
		assert.Equal(t, 100.0, cfg.scoreLCOE(f(1), f(1), "solar"))
	})
}

func TestScoreTariff(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("cheapest tariff scores full", func(t *testing.T) {
		assert.Equal(t, 100.0, cfg.scoreTariff(&tnuos.Zone{Tariff: -5}))
	})
	t.Run("dearest tariff scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, cfg.scoreTariff(&tnuos.Zone{Tariff: 25}))
	})
	t.Run("outside zones gets neutral zero tariff", func(t *testing.T) {
		assert.Equal(t, cfg.scoreTariff(&tnuos.Zone{Tariff: 0}), cfg.scoreTariff(nil))
	})
	t.Run("monotone in tariff", func(t *testing.T) {
		assert.Greater(t,
			cfg.scoreTariff(&tnuos.Zone{Tariff: 6}),
			cfg.scoreTariff(&tnuos.Zone{Tariff: 15}))
	})
}

func TestComponentVectorOrderMatchesWeights(t *testing.T) {
	comps := ComponentSet{
		Capacity: 1, Stage: 2, Technology: 3, GridInfra: 4,
		DigitalInfra: 5, Water: 6, LCOE: 7, TNUoS: 8,
	}
	w := persona.Weights{
		Capacity: 1, Stage: 2, Technology: 3, GridInfra: 4,
		DigitalInfra: 5, Water: 6, LCOE: 7, TNUoS: 8,
	}
	cv := comps.Vector()
	wv := w.Vector()
	for i := range cv {
		assert.Equal(t, cv[i], wv[i], ComponentNames[i])
	}
}
