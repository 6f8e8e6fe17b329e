// Package persona defines the stakeholder profiles that drive composite
// scoring: a capacity envelope plus an 8-component weight vector per
// persona.
package persona

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// weightEpsilon is the tolerance on the weight-vector sum after
// normalization.
const weightEpsilon = 1e-6

// Class distinguishes the two target profiles a persona can score for.
type Class string

const (
	ClassDataCenter Class = "datacenter"
	ClassDeveloper  Class = "developer"
)

// CapacityEnvelope is a persona's preferred project capacity range in MW.
type CapacityEnvelope struct {
	MinMW   float64 `yaml:"min_mw"`
	IdealMW float64 `yaml:"ideal_mw"`
	MaxMW   float64 `yaml:"max_mw"`
}

// Weights is the component weight vector. Values are validated non-negative
// and re-normalized to sum to 1.0 before use.
type Weights struct {
	Capacity     float64 `yaml:"capacity"`
	Stage        float64 `yaml:"stage"`
	Technology   float64 `yaml:"technology"`
	GridInfra    float64 `yaml:"grid_infra"`
	DigitalInfra float64 `yaml:"digital_infra"`
	Water        float64 `yaml:"water"`
	LCOE         float64 `yaml:"lcoe"`
	TNUoS        float64 `yaml:"tnuos"`
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	return w.Capacity + w.Stage + w.Technology + w.GridInfra +
		w.DigitalInfra + w.Water + w.LCOE + w.TNUoS
}

// Normalized returns the weights scaled so they sum to exactly 1.0. This is
// the defensive re-normalization applied before every composite
// combination, so configuration drift never skews scores.
func (w Weights) Normalized() (Weights, error) {
	sum := w.Sum()
	if sum <= 0 {
		return Weights{}, eris.New("persona: weight sum must be > 0")
	}
	return Weights{
		Capacity:     w.Capacity / sum,
		Stage:        w.Stage / sum,
		Technology:   w.Technology / sum,
		GridInfra:    w.GridInfra / sum,
		DigitalInfra: w.DigitalInfra / sum,
		Water:        w.Water / sum,
		LCOE:         w.LCOE / sum,
		TNUoS:        w.TNUoS / sum,
	}, nil
}

// Vector returns the weights in the canonical component order used by the
// scoring engine.
func (w Weights) Vector() [8]float64 {
	return [8]float64{w.Capacity, w.Stage, w.Technology, w.GridInfra, w.DigitalInfra, w.Water, w.LCOE, w.TNUoS}
}

// Persona is a named stakeholder profile. Personas are static
// configuration: loaded once at startup and never mutated.
type Persona struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Class    Class            `yaml:"class"`
	Capacity CapacityEnvelope `yaml:"capacity"`
	Weights  Weights          `yaml:"weights"`
}

// Validate checks that a persona is internally consistent. Violations are
// configuration errors and fatal at startup.
func (p Persona) Validate() error {
	var errs []string

	if p.ID == "" {
		errs = append(errs, "id is required")
	}
	if p.Class != ClassDataCenter && p.Class != ClassDeveloper {
		errs = append(errs, fmt.Sprintf("class must be %q or %q, got %q", ClassDataCenter, ClassDeveloper, p.Class))
	}

	if p.Capacity.IdealMW <= 0 {
		errs = append(errs, "capacity.ideal_mw must be > 0")
	}
	if p.Capacity.MinMW < 0 {
		errs = append(errs, "capacity.min_mw must be >= 0")
	}
	if p.Capacity.MinMW > p.Capacity.IdealMW {
		errs = append(errs, "capacity.min_mw must be <= capacity.ideal_mw")
	}
	if p.Capacity.MaxMW < p.Capacity.IdealMW {
		errs = append(errs, "capacity.max_mw must be >= capacity.ideal_mw")
	}

	for name, w := range map[string]float64{
		"capacity":      p.Weights.Capacity,
		"stage":         p.Weights.Stage,
		"technology":    p.Weights.Technology,
		"grid_infra":    p.Weights.GridInfra,
		"digital_infra": p.Weights.DigitalInfra,
		"water":         p.Weights.Water,
		"lcoe":          p.Weights.LCOE,
		"tnuos":         p.Weights.TNUoS,
	} {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", name))
		}
	}
	if p.Weights.Sum() <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("persona %q: %s", p.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Registry is an immutable lookup table of personas.
type Registry struct {
	byID  map[string]Persona
	order []string
}

// NewRegistry validates every persona and builds a registry. Duplicate ids
// and invalid personas are configuration errors.
func NewRegistry(personas []Persona) (*Registry, error) {
	if len(personas) == 0 {
		return nil, eris.New("persona: registry needs at least one persona")
	}
	r := &Registry{byID: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, eris.Errorf("persona: duplicate id %q", p.ID)
		}
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// Get returns the persona with the given id.
func (r *Registry) Get(id string) (Persona, error) {
	p, ok := r.byID[id]
	if !ok {
		return Persona{}, eris.Errorf("persona: unknown id %q", id)
	}
	return p, nil
}

// List returns all personas in registration order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
