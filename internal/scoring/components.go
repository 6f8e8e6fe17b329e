package scoring

import (
	"math"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/persona"
	"github.com/gridatlas/siterank-cli/internal/tnuos"
)

// ComponentSet holds the eight component scores, each in [0,100].
type ComponentSet struct {
	Capacity     float64 `json:"capacity"`
	Stage        float64 `json:"stage"`
	Technology   float64 `json:"technology"`
	GridInfra    float64 `json:"gridInfra"`
	DigitalInfra float64 `json:"digitalInfra"`
	Water        float64 `json:"water"`
	LCOE         float64 `json:"lcoe"`
	TNUoS        float64 `json:"tnuos"`
}

// ComponentNames is the canonical component order, aligned with
// persona.Weights.Vector.
var ComponentNames = [8]string{
	"capacity", "stage", "technology", "gridInfra",
	"digitalInfra", "water", "lcoe", "tnuos",
}

// Vector returns the component scores in canonical order.
func (c ComponentSet) Vector() [8]float64 {
	return [8]float64{
		c.Capacity, c.Stage, c.Technology, c.GridInfra,
		c.DigitalInfra, c.Water, c.LCOE, c.TNUoS,
	}
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// decayScore maps a distance to a score. Full score at zero distance, then
// exponential decay with a half-life of a third of the cutoff, so the score
// has nearly converged to the floor by the cutoff distance. A missing
// feature (no hit within the search radius) scores the floor.
func decayScore(distanceKm float64, found bool, cfg DecayConfig) float64 {
	if !found {
		return cfg.Floor
	}
	if distanceKm <= 0 {
		return 100
	}
	halfLife := cfg.CutoffKm / 3
	decayed := cfg.Floor + (100-cfg.Floor)*math.Pow(2, -distanceKm/halfLife)
	if decayed < cfg.Floor {
		return cfg.Floor
	}
	return decayed
}

// scoreCapacity rates a capacity against a persona's envelope. Full score at
// the ideal, linear ramps to an edge score at the envelope bounds, then a
// gentler decay toward a floor outside the envelope. Non-positive capacity
// scores zero.
func scoreCapacity(capacityMW float64, env persona.CapacityEnvelope) float64 {
	const (
		edgeScore  = 70.0
		floorScore = 20.0
	)
	if capacityMW <= 0 {
		return 0
	}
	switch {
	case capacityMW == env.IdealMW:
		return 100
	case capacityMW < env.IdealMW:
		if capacityMW >= env.MinMW {
			span := env.IdealMW - env.MinMW
			if span <= 0 {
				return 100
			}
			return edgeScore + (100-edgeScore)*(capacityMW-env.MinMW)/span
		}
		if env.MinMW <= 0 {
			return edgeScore
		}
		return floorScore + (edgeScore-floorScore)*capacityMW/env.MinMW
	default:
		if capacityMW <= env.MaxMW {
			span := env.MaxMW - env.IdealMW
			if span <= 0 {
				return 100
			}
			return edgeScore + (100-edgeScore)*(env.MaxMW-capacityMW)/span
		}
		// Oversize decays with the envelope-to-capacity ratio so a site
		// twice the max is still worth a look, not written off.
		decayed := edgeScore * env.MaxMW / capacityMW
		if decayed < floorScore {
			return floorScore
		}
		return decayed
	}
}

// scoreStage looks up the development-status code. Unknown codes get the
// configured conservative default rather than zero.
func (c Config) scoreStage(stage string) float64 {
	if s, ok := c.StageScores[stage]; ok {
		return s
	}
	return c.UnknownStageScore
}

// scoreTechnology rates the generation technology for a persona class.
func (c Config) scoreTechnology(tech string, class persona.Class) float64 {
	if table, ok := c.TechScores[class]; ok {
		if s, ok := table[tech]; ok {
			return s
		}
	}
	return c.UnknownTechScore
}

// scoreProximityPair takes the closer of two nearest-feature results. Used
// for grid (substation or transmission line) and digital (fiber or IXP)
// components where either feature kind satisfies the need.
func scoreProximityPair(a, b catalog.NearestResult, cfg DecayConfig) float64 {
	best := a
	if !best.Found || (b.Found && b.DistanceKm < best.DistanceKm) {
		best = b
	}
	return decayScore(best.DistanceKm, best.Found, cfg)
}

// scoreLCOE rates cost competitiveness. The baseline £/MWh is adjusted by
// resource quality (1.0 is best) and compared against the best achievable
// LCOE; every pound above it costs SlopePerGBP points.
func (c Config) scoreLCOE(baseline *float64, quality *float64, tech string) float64 {
	base := c.LCOE.FallbackBaseline
	if baseline != nil && *baseline > 0 {
		base = *baseline
	} else if b, ok := c.LCOE.TechBaselines[tech]; ok {
		base = b
	}

	q := 0.5
	if quality != nil {
		q = math.Max(0, math.Min(1, *quality))
	}
	effective := base * (1 - c.LCOE.QualitySwing*(q-0.5))

	return clampScore(100 - (effective-c.LCOE.BestGBPPerMWh)*c.LCOE.SlopePerGBP)
}

// scoreTariff maps a TNUoS generation tariff onto the configured linear
// band. Lower (more negative) tariffs score higher. A site outside every
// zone gets the neutral zero-tariff score.
func (c Config) scoreTariff(zone *tnuos.Zone) float64 {
	tariff := 0.0
	if zone != nil {
		tariff = zone.Tariff
	}
	span := c.Tariff.MaxTariff - c.Tariff.MinTariff
	return clampScore(100 * (c.Tariff.MaxTariff - tariff) / span)
}
