package persona

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Defaults returns the built-in persona table used when no override file is
// configured.
func Defaults() []Persona {
	return []Persona{
		{
			ID:       "hyperscaler",
			Name:     "Hyperscale Data Center Operator",
			Class:    ClassDataCenter,
			Capacity: CapacityEnvelope{MinMW: 50, IdealMW: 200, MaxMW: 500},
			Weights: Weights{
				Capacity: 0.15, Stage: 0.10, Technology: 0.05, GridInfra: 0.25,
				DigitalInfra: 0.25, Water: 0.10, LCOE: 0.05, TNUoS: 0.05,
			},
		},
		{
			ID:       "colo-operator",
			Name:     "Colocation / Edge Operator",
			Class:    ClassDataCenter,
			Capacity: CapacityEnvelope{MinMW: 5, IdealMW: 30, MaxMW: 100},
			Weights: Weights{
				Capacity: 0.10, Stage: 0.10, Technology: 0.05, GridInfra: 0.20,
				DigitalInfra: 0.35, Water: 0.05, LCOE: 0.10, TNUoS: 0.05,
			},
		},
		{
			ID:       "utility-developer",
			Name:     "Utility-Scale Power Developer",
			Class:    ClassDeveloper,
			Capacity: CapacityEnvelope{MinMW: 50, IdealMW: 150, MaxMW: 400},
			Weights: Weights{
				Capacity: 0.20, Stage: 0.15, Technology: 0.10, GridInfra: 0.25,
				DigitalInfra: 0.00, Water: 0.05, LCOE: 0.15, TNUoS: 0.10,
			},
		},
		{
			ID:       "community-developer",
			Name:     "Community Energy Developer",
			Class:    ClassDeveloper,
			Capacity: CapacityEnvelope{MinMW: 1, IdealMW: 10, MaxMW: 50},
			Weights: Weights{
				Capacity: 0.25, Stage: 0.20, Technology: 0.15, GridInfra: 0.20,
				DigitalInfra: 0.00, Water: 0.05, LCOE: 0.10, TNUoS: 0.05,
			},
		},
	}
}

// LoadFile reads a persona table from a YAML file. The file carries a
// top-level "personas" key.
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "persona: read %s", path)
	}

	var wrapper struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "persona: parse %s", path)
	}
	if len(wrapper.Personas) == 0 {
		return nil, eris.Errorf("persona: %s defines no personas", path)
	}
	return wrapper.Personas, nil
}

// LoadRegistry builds a registry from the override file when path is
// non-empty, otherwise from the built-in defaults.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Defaults())
	}
	personas, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(personas)
}
