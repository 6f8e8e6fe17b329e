package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/persona"
	"github.com/gridatlas/siterank-cli/internal/spatial"
	"github.com/gridatlas/siterank-cli/internal/tnuos"
)

// Method selects how component scores combine into a composite.
type Method string

const (
	MethodWeightedSum Method = "weighted-sum"
	MethodTOPSIS      Method = "topsis"
)

// ParseMethod validates a method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodWeightedSum, MethodTOPSIS:
		return Method(s), nil
	case "":
		return MethodWeightedSum, nil
	default:
		return "", eris.Errorf("scoring: unknown method %q (want %q or %q)", s, MethodWeightedSum, MethodTOPSIS)
	}
}

// ProjectInput is one candidate site to score.
type ProjectInput struct {
	ProjectID  string             `json:"project_id" yaml:"project_id"`
	Coord      spatial.Coordinate `json:"coord" yaml:"coord"`
	CapacityMW float64            `json:"capacity_mw" yaml:"capacity_mw"`
	Technology string             `json:"technology" yaml:"technology"`
	Stage      string             `json:"stage" yaml:"stage"`

	// BaselineLCOE in £/MWh. Nil falls back to the technology default.
	BaselineLCOE *float64 `json:"baseline_lcoe,omitempty" yaml:"baseline_lcoe,omitempty"`
	// ResourceQuality in [0,1], 1.0 being the best achievable resource
	// for the technology. Nil means average (0.5).
	ResourceQuality *float64 `json:"resource_quality,omitempty" yaml:"resource_quality,omitempty"`
}

// Validate rejects inputs that cannot be scored at all. A zero capacity is
// scoreable (the capacity component is zero); a negative one is malformed.
func (p ProjectInput) Validate() error {
	var errs []string
	if strings.TrimSpace(p.ProjectID) == "" {
		errs = append(errs, "project_id is required")
	}
	if !p.Coord.Valid() {
		errs = append(errs, fmt.Sprintf("coordinate (%v, %v) is invalid", p.Coord.Lat, p.Coord.Lon))
	}
	if p.CapacityMW < 0 {
		errs = append(errs, fmt.Sprintf("capacity_mw %v is negative", p.CapacityMW))
	}
	if p.ResourceQuality != nil && (*p.ResourceQuality < 0 || *p.ResourceQuality > 1) {
		errs = append(errs, fmt.Sprintf("resource_quality %v is outside [0,1]", *p.ResourceQuality))
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid project input: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Facts records the raw nearest-infrastructure evidence behind a score, so
// callers can show why a site rated the way it did.
type Facts struct {
	Substation   catalog.NearestResult `json:"substation"`
	Transmission catalog.NearestResult `json:"transmission"`
	Fiber        catalog.NearestResult `json:"fiber"`
	IXP          catalog.NearestResult `json:"ixp"`
	Water        catalog.NearestResult `json:"water"`

	Zone           *tnuos.Zone `json:"zone,omitempty"`
	SearchRadiusKm float64     `json:"search_radius_km"`
}

// DegradedCategories lists categories whose index failed to load, meaning
// the corresponding component scores on absent data.
func (f Facts) DegradedCategories() []string {
	var out []string
	for _, r := range []catalog.NearestResult{f.Substation, f.Transmission, f.Fiber, f.IXP, f.Water} {
		if r.Degraded {
			out = append(out, string(r.Category))
		}
	}
	return out
}

// CompositeResult is the full scoring outcome for one project under one
// persona.
type CompositeResult struct {
	ProjectID string `json:"project_id"`
	PersonaID string `json:"persona_id"`
	Method    Method `json:"method"`

	Score       float64 `json:"score"`
	Rating      float64 `json:"rating"`
	RatingLabel string  `json:"rating_label"`
	RatingColor string  `json:"rating_color"`

	Components ComponentSet `json:"components"`
	Facts      Facts        `json:"facts"`
	Degraded   []string     `json:"degraded,omitempty"`
}

// Engine wires the cached catalog, persona registry, and tariff table into
// the scoring pipeline.
type Engine struct {
	cache    *catalog.Cache
	personas *persona.Registry
	zones    *tnuos.Table
	cfg      Config
}

// NewEngine validates the configuration and returns an engine.
func NewEngine(cache *catalog.Cache, personas *persona.Registry, zones *tnuos.Table, cfg Config) (*Engine, error) {
	if cache == nil {
		return nil, eris.New("scoring: catalog cache is required")
	}
	if personas == nil {
		return nil, eris.New("scoring: persona registry is required")
	}
	if zones == nil {
		return nil, eris.New("scoring: tariff table is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cache: cache, personas: personas, zones: zones, cfg: cfg}, nil
}

// Personas exposes the registry for listing commands.
func (e *Engine) Personas() *persona.Registry { return e.personas }

// Snapshot returns the current catalog, building it if needed. Batch
// callers take one snapshot so every project in a run sees the same data.
func (e *Engine) Snapshot(ctx context.Context) (*catalog.Catalog, error) {
	return e.cache.Get(ctx)
}

// InvalidateCatalog forces a rebuild on the next snapshot.
func (e *Engine) InvalidateCatalog() { e.cache.Invalidate() }

// CacheStats exposes cache hit counters.
func (e *Engine) CacheStats() catalog.CacheStats { return e.cache.Stats() }

// Persona resolves a persona by id.
func (e *Engine) Persona(id string) (persona.Persona, error) {
	return e.personas.Get(id)
}

// Evaluate computes the component scores and supporting facts for one
// project against one persona, using the given catalog snapshot.
func (e *Engine) Evaluate(cat *catalog.Catalog, input ProjectInput, p persona.Persona) (ComponentSet, Facts, error) {
	if err := input.Validate(); err != nil {
		return ComponentSet{}, Facts{}, err
	}

	lat, lon := input.Coord.Lat, input.Coord.Lon
	r := e.cfg.SearchRadiusKm

	facts := Facts{
		Substation:     cat.Nearest(spatial.CategorySubstation, lat, lon, r),
		Transmission:   cat.Nearest(spatial.CategoryTransmission, lat, lon, r),
		Fiber:          cat.Nearest(spatial.CategoryFiber, lat, lon, r),
		IXP:            cat.Nearest(spatial.CategoryIXP, lat, lon, r),
		Water:          cat.Nearest(spatial.CategoryWater, lat, lon, r),
		SearchRadiusKm: r,
	}
	if zone, ok := e.zones.Lookup(lat, lon); ok {
		facts.Zone = &zone
	}

	comps := ComponentSet{
		Capacity:     scoreCapacity(input.CapacityMW, p.Capacity),
		Stage:        e.cfg.scoreStage(input.Stage),
		Technology:   e.cfg.scoreTechnology(input.Technology, p.Class),
		GridInfra:    scoreProximityPair(facts.Substation, facts.Transmission, e.cfg.GridDecay),
		DigitalInfra: scoreProximityPair(facts.Fiber, facts.IXP, e.cfg.DigitalDecay),
		Water:        decayScore(facts.Water.DistanceKm, facts.Water.Found, e.cfg.WaterDecay),
		LCOE:         e.cfg.scoreLCOE(input.BaselineLCOE, input.ResourceQuality, input.Technology),
		TNUoS:        e.cfg.scoreTariff(facts.Zone),
	}

	if degraded := facts.DegradedCategories(); len(degraded) > 0 {
		zap.L().Warn("scoring on degraded catalog data",
			zap.String("project_id", input.ProjectID),
			zap.Strings("categories", degraded))
	}

	return comps, facts, nil
}

// ScoreProject scores a single project with the weighted-sum composite.
func (e *Engine) ScoreProject(ctx context.Context, input ProjectInput, personaID string) (*CompositeResult, error) {
	p, err := e.personas.Get(personaID)
	if err != nil {
		return nil, err
	}
	cat, err := e.cache.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: catalog unavailable")
	}
	comps, facts, err := e.Evaluate(cat, input, p)
	if err != nil {
		return nil, err
	}
	return e.FinalizeWeighted(input.ProjectID, p, comps, facts)
}

// FinalizeWeighted builds the composite result from already-computed
// components using the persona's normalized weighted sum.
func (e *Engine) FinalizeWeighted(projectID string, p persona.Persona, comps ComponentSet, facts Facts) (*CompositeResult, error) {
	score, err := WeightedComposite(comps, p.Weights)
	if err != nil {
		return nil, err
	}
	return e.finalize(projectID, p, comps, facts, score, MethodWeightedSum), nil
}

// FinalizeTOPSIS builds composite results for a whole cohort, ranked by
// TOPSIS closeness. Inputs, components, and facts are parallel slices.
func (e *Engine) FinalizeTOPSIS(projectIDs []string, p persona.Persona, comps []ComponentSet, facts []Facts) ([]*CompositeResult, error) {
	scores, err := TOPSISScores(comps, p.Weights)
	if err != nil {
		return nil, err
	}
	out := make([]*CompositeResult, len(comps))
	for i := range comps {
		out[i] = e.finalize(projectIDs[i], p, comps[i], facts[i], scores[i], MethodTOPSIS)
	}
	return out, nil
}

func (e *Engine) finalize(projectID string, p persona.Persona, comps ComponentSet, facts Facts, score float64, method Method) *CompositeResult {
	label, color := e.cfg.bucketFor(score)
	return &CompositeResult{
		ProjectID:   projectID,
		PersonaID:   p.ID,
		Method:      method,
		Score:       score,
		Rating:      RatingFromScore(score),
		RatingLabel: label,
		RatingColor: color,
		Components:  comps,
		Facts:       facts,
		Degraded:    facts.DegradedCategories(),
	}
}
