package tnuos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_Lookup(t *testing.T) {
	table, err := NewTable(DefaultZones())
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lon float64
		wantZone string
	}{
		{"inverness", 57.48, -4.22, "North Scotland"},
		{"glasgow", 55.86, -4.25, "South Scotland"},
		{"leeds", 53.80, -1.55, "North England & Midlands"},
		{"bristol", 51.45, -2.59, "Southern England & Wales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, ok := table.Lookup(tt.lat, tt.lon)
			require.True(t, ok)
			assert.Equal(t, tt.wantZone, z.Name)
		})
	}
}

func TestLookup_OutsideAllZones(t *testing.T) {
	table, err := NewTable(DefaultZones())
	require.NoError(t, err)

	// Mid-Atlantic.
	_, ok := table.Lookup(45.0, -30.0)
	assert.False(t, ok)
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable([]Zone{{Name: "degenerate", Boundary: [][2]float64{{52, -1}, {53, -1}}}})
	assert.Error(t, err)
}

func TestNewTable_ClosesOpenRings(t *testing.T) {
	// Open triangle around (52.0, -1.5).
	table, err := NewTable([]Zone{{
		ID: 1, Name: "tri", Tariff: 3.0,
		Boundary: [][2]float64{{51.5, -2.5}, {52.5, -1.5}, {51.5, -0.5}},
	}})
	require.NoError(t, err)

	z, ok := table.Lookup(52.0, -1.5)
	require.True(t, ok)
	assert.Equal(t, "tri", z.Name)

	_, ok = table.Lookup(52.4, -2.4)
	assert.False(t, ok)
}

func TestLoadTable_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zones:
  - id: 9
    name: Test Zone
    tariff: 4.5
    boundary:
      - [51.0, -2.0]
      - [53.0, -2.0]
      - [53.0, 0.0]
      - [51.0, 0.0]
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)

	z, ok := table.Lookup(52.0, -1.0)
	require.True(t, ok)
	assert.Equal(t, 9, z.ID)
	assert.InDelta(t, 4.5, z.Tariff, 1e-9)
}

func TestLoadTable_DefaultsWhenNoPath(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.Len(t, table.Zones(), 4)
}
