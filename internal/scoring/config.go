// Package scoring turns nearest-infrastructure facts and project attributes
// into component scores and a persona-weighted composite rating.
package scoring

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gridatlas/siterank-cli/internal/persona"
)

// DecayConfig shapes one distance-decay component: full score at 0 km,
// approaching Floor beyond CutoffKm.
type DecayConfig struct {
	CutoffKm float64 `yaml:"cutoff_km" mapstructure:"cutoff_km"`
	Floor    float64 `yaml:"floor" mapstructure:"floor"`
}

// LCOEConfig shapes the LCOE-quality component.
type LCOEConfig struct {
	// BestGBPPerMWh is the £/MWh at or below which the component scores 100.
	BestGBPPerMWh float64 `yaml:"best_gbp_per_mwh" mapstructure:"best_gbp_per_mwh"`
	// SlopePerGBP is the score lost per £/MWh above best.
	SlopePerGBP float64 `yaml:"slope_per_gbp" mapstructure:"slope_per_gbp"`
	// QualitySwing scales the resource-quality adjustment: a quality of 1.0
	// cuts the baseline by QualitySwing/2 fraction, a quality of 0.0 raises
	// it by the same.
	QualitySwing float64 `yaml:"quality_swing" mapstructure:"quality_swing"`
	// TechBaselines supplies a default baseline £/MWh per technology when
	// the project carries none.
	TechBaselines map[string]float64 `yaml:"tech_baselines" mapstructure:"tech_baselines"`
	// FallbackBaseline applies when the technology is unknown too.
	FallbackBaseline float64 `yaml:"fallback_baseline" mapstructure:"fallback_baseline"`
}

// TariffConfig maps a TNUoS tariff onto a score via a linear band: tariffs
// at or below MinTariff score 100, at or above MaxTariff score 0.
type TariffConfig struct {
	MinTariff float64 `yaml:"min_tariff" mapstructure:"min_tariff"`
	MaxTariff float64 `yaml:"max_tariff" mapstructure:"max_tariff"`
}

// RatingBucket labels a score range. Buckets are evaluated highest
// threshold first.
type RatingBucket struct {
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
	Label    string  `yaml:"label" mapstructure:"label"`
	Color    string  `yaml:"color" mapstructure:"color"`
}

// Config carries every numeric table the scorers consume. All of it is
// injected data; none of it is hard-wired into algorithm code.
type Config struct {
	// SearchRadiusKm bounds nearest-infrastructure queries.
	SearchRadiusKm float64 `yaml:"search_radius_km" mapstructure:"search_radius_km"`

	GridDecay    DecayConfig `yaml:"grid_decay" mapstructure:"grid_decay"`
	DigitalDecay DecayConfig `yaml:"digital_decay" mapstructure:"digital_decay"`
	WaterDecay   DecayConfig `yaml:"water_decay" mapstructure:"water_decay"`

	// StageScores maps development-status codes to scores. Unknown codes
	// fall back to UnknownStageScore.
	StageScores       map[string]float64 `yaml:"stage_scores" mapstructure:"stage_scores"`
	UnknownStageScore float64            `yaml:"unknown_stage_score" mapstructure:"unknown_stage_score"`

	// TechScores maps persona class -> technology -> suitability in [60,100].
	TechScores       map[persona.Class]map[string]float64 `yaml:"tech_scores" mapstructure:"tech_scores"`
	UnknownTechScore float64                              `yaml:"unknown_tech_score" mapstructure:"unknown_tech_score"`

	LCOE   LCOEConfig   `yaml:"lcoe" mapstructure:"lcoe"`
	Tariff TariffConfig `yaml:"tariff" mapstructure:"tariff"`

	Buckets []RatingBucket `yaml:"buckets" mapstructure:"buckets"`
}

// DefaultConfig returns the tuned GB-scale configuration.
func DefaultConfig() Config {
	return Config{
		SearchRadiusKm: 75,

		GridDecay:    DecayConfig{CutoffKm: 25, Floor: 15},
		DigitalDecay: DecayConfig{CutoffKm: 40, Floor: 15},
		WaterDecay:   DecayConfig{CutoffKm: 15, Floor: 15},

		StageScores: map[string]float64{
			"operational":        100,
			"under-construction": 90,
			"consented":          75,
			"in-planning":        55,
			"scoping":            40,
			"concept":            25,
		},
		UnknownStageScore: 40,

		TechScores: map[persona.Class]map[string]float64{
			persona.ClassDataCenter: {
				"solar":         70,
				"wind":          65,
				"battery":       80,
				"solar+battery": 90,
				"wind+battery":  85,
				"hydro":         75,
			},
			persona.ClassDeveloper: {
				"solar":         85,
				"wind":          90,
				"battery":       75,
				"solar+battery": 95,
				"wind+battery":  90,
				"hydro":         80,
			},
		},
		UnknownTechScore: 60,

		LCOE: LCOEConfig{
			BestGBPPerMWh: 30,
			SlopePerGBP:   1.5,
			QualitySwing:  0.4,
			TechBaselines: map[string]float64{
				"solar":         45,
				"wind":          40,
				"battery":       65,
				"solar+battery": 55,
				"wind+battery":  50,
				"hydro":         60,
			},
			FallbackBaseline: 60,
		},

		Tariff: TariffConfig{MinTariff: -5, MaxTariff: 25},

		Buckets: []RatingBucket{
			{MinScore: 80, Label: "Excellent", Color: "#2e7d32"},
			{MinScore: 65, Label: "Good", Color: "#66bb6a"},
			{MinScore: 50, Label: "Moderate", Color: "#ffb300"},
			{MinScore: 40, Label: "Fair", Color: "#fb8c00"},
			{MinScore: 0, Label: "Poor", Color: "#c62828"},
		},
	}
}

// Validate checks the configuration. Violations are fatal at startup.
func (c Config) Validate() error {
	var errs []string

	if c.SearchRadiusKm <= 0 {
		errs = append(errs, "search_radius_km must be > 0")
	}
	for name, d := range map[string]DecayConfig{
		"grid_decay":    c.GridDecay,
		"digital_decay": c.DigitalDecay,
		"water_decay":   c.WaterDecay,
	} {
		if d.CutoffKm <= 0 {
			errs = append(errs, fmt.Sprintf("%s.cutoff_km must be > 0", name))
		}
		if d.Floor < 0 || d.Floor >= 100 {
			errs = append(errs, fmt.Sprintf("%s.floor must be in [0,100)", name))
		}
	}
	for code, s := range c.StageScores {
		if s < 0 || s > 100 {
			errs = append(errs, fmt.Sprintf("stage_scores[%s] must be in [0,100]", code))
		}
	}
	if c.UnknownStageScore < 0 || c.UnknownStageScore > 100 {
		errs = append(errs, "unknown_stage_score must be in [0,100]")
	}
	for class, table := range c.TechScores {
		for tech, s := range table {
			if s < 60 || s > 100 {
				errs = append(errs, fmt.Sprintf("tech_scores[%s][%s] must be in [60,100]", class, tech))
			}
		}
	}
	if c.LCOE.SlopePerGBP <= 0 {
		errs = append(errs, "lcoe.slope_per_gbp must be > 0")
	}
	if c.Tariff.MaxTariff <= c.Tariff.MinTariff {
		errs = append(errs, "tariff.max_tariff must be > tariff.min_tariff")
	}
	if len(c.Buckets) == 0 {
		errs = append(errs, "at least one rating bucket is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
