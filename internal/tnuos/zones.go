// Package tnuos maps coordinates to transmission charging zones and their
// generation tariffs.
package tnuos

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"gopkg.in/yaml.v3"
)

// Zone is one charging zone: a polygon boundary and a generation tariff in
// £/kW/yr. Northern zones carry high positive tariffs; southern zones can
// go negative.
type Zone struct {
	ID     int     `yaml:"id"`
	Name   string  `yaml:"name"`
	Tariff float64 `yaml:"tariff"`
	// Boundary is a closed ring of [lat, lon] vertices. The closing vertex
	// may be omitted.
	Boundary [][2]float64 `yaml:"boundary"`
}

// Table is an immutable zone lookup built once at startup.
type Table struct {
	zones []Zone
	rings [][]float64 // flat XY (lon, lat) rings, closed
}

// NewTable validates the zones and precomputes their lookup rings.
func NewTable(zones []Zone) (*Table, error) {
	if len(zones) == 0 {
		return nil, eris.New("tnuos: zone table is empty")
	}
	t := &Table{zones: zones}
	for _, z := range zones {
		if len(z.Boundary) < 3 {
			return nil, eris.Errorf("tnuos: zone %q boundary needs at least 3 vertices", z.Name)
		}
		flat := make([]float64, 0, (len(z.Boundary)+1)*2)
		for _, v := range z.Boundary {
			flat = append(flat, v[1], v[0]) // lon, lat
		}
		// Close the ring if the file left it open.
		if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
			flat = append(flat, flat[0], flat[1])
		}
		t.rings = append(t.rings, flat)
	}
	return t, nil
}

// Lookup returns the zone containing the coordinate. The second return is
// false when the point lies outside every zone; callers treat that as a
// neutral tariff, not an error.
func (t *Table) Lookup(lat, lon float64) (Zone, bool) {
	p := geom.Coord{lon, lat}
	for i, ring := range t.rings {
		if xy.IsPointInRing(geom.XY, p, ring) {
			return t.zones[i], true
		}
	}
	return Zone{}, false
}

// Zones returns the configured zones in table order.
func (t *Table) Zones() []Zone {
	out := make([]Zone, len(t.zones))
	copy(out, t.zones)
	return out
}

// DefaultZones returns a coarse four-band GB zone table. Real deployments
// override it with the published zone boundaries via LoadFile.
func DefaultZones() []Zone {
	return []Zone{
		{
			ID: 1, Name: "North Scotland", Tariff: 22.5,
			Boundary: [][2]float64{{56.8, -8.5}, {60.9, -8.5}, {60.9, -0.5}, {56.8, -0.5}},
		},
		{
			ID: 2, Name: "South Scotland", Tariff: 15.0,
			Boundary: [][2]float64{{54.6, -8.5}, {56.8, -8.5}, {56.8, -0.5}, {54.6, -0.5}},
		},
		{
			ID: 3, Name: "North England & Midlands", Tariff: 6.0,
			Boundary: [][2]float64{{52.4, -8.5}, {54.6, -8.5}, {54.6, 2.2}, {52.4, 2.2}},
		},
		{
			ID: 4, Name: "Southern England & Wales", Tariff: -2.5,
			Boundary: [][2]float64{{49.8, -8.5}, {52.4, -8.5}, {52.4, 2.2}, {49.8, 2.2}},
		},
	}
}

// LoadFile reads a zone table from a YAML file with a top-level "zones"
// key.
func LoadFile(path string) ([]Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tnuos: read %s", path)
	}
	var wrapper struct {
		Zones []Zone `yaml:"zones"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "tnuos: parse %s", path)
	}
	if len(wrapper.Zones) == 0 {
		return nil, eris.Errorf("tnuos: %s defines no zones", path)
	}
	return wrapper.Zones, nil
}

// LoadTable builds a table from the override file when path is non-empty,
// otherwise from the built-in default zones.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return NewTable(DefaultZones())
	}
	zones, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewTable(zones)
}
