// Package catalog owns per-category spatial grid indexes over infrastructure
// features and the TTL cache that serves them.
package catalog

import (
	"context"

	"github.com/gridatlas/siterank-cli/internal/spatial"
)

// PointRecord is a raw point row from a feature store.
type PointRecord struct {
	ID    string            `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// LineRecord is a raw polyline row from a feature store.
type LineRecord struct {
	ID     string               `json:"id"`
	Coords []spatial.Coordinate `json:"coords"`
	Attrs  map[string]string    `json:"attrs,omitempty"`
}

// FeatureSet is one category's worth of raw records. Both slices may be
// empty; an absent category is not an error.
type FeatureSet struct {
	Points []PointRecord
	Lines  []LineRecord
}

// FeatureSource supplies raw feature records per category. Implementations
// must report a category-level load failure as an error, distinct from an
// empty FeatureSet.
type FeatureSource interface {
	Load(ctx context.Context, cat spatial.Category) (FeatureSet, error)
}
