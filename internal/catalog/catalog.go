package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridatlas/siterank-cli/internal/resilience"
	"github.com/gridatlas/siterank-cli/internal/spatial"
)

// Config controls catalog construction.
type Config struct {
	// CellSizeDeg is the grid cell size in degrees. Must be positive.
	CellSizeDeg float64

	// LoadRetry wraps each category load. The zero value gets the
	// resilience package defaults applied.
	LoadRetry resilience.RetryConfig
}

// CategoryStats describes one category's slice of a built catalog.
type CategoryStats struct {
	Category spatial.Category `json:"category"`
	Points   int              `json:"points"`
	Lines    int              `json:"lines"`
	Degraded bool             `json:"degraded"`
}

// Stats summarizes a catalog snapshot for the read-only inspection surface.
type Stats struct {
	BuiltAt       time.Time       `json:"built_at"`
	BuildDuration time.Duration   `json:"build_duration"`
	Categories    []CategoryStats `json:"categories"`
}

// Catalog is an immutable set of per-category grid indexes. A rebuild
// produces a new instance; readers of an existing one never observe
// mutation.
type Catalog struct {
	builtAt  time.Time
	buildDur time.Duration
	grids    map[spatial.Category]*spatial.Grid
	degraded map[spatial.Category]bool
}

// NearestResult holds the closest feature of one category to a query point,
// or Found=false when nothing lies within the search radius (or the
// category's data failed to load).
type NearestResult struct {
	Category   spatial.Category `json:"category"`
	Found      bool             `json:"found"`
	Degraded   bool             `json:"degraded"`
	SourceID   string           `json:"source_id,omitempty"`
	DistanceKm float64          `json:"distance_km,omitempty"`
	IsLine     bool             `json:"is_line,omitempty"`
}

// Build loads every category from the source and constructs a fully
// populated catalog. Categories load concurrently; a failed category is
// logged, marked degraded, and left as an empty grid rather than aborting
// the build. Build fails outright only on bad configuration or context
// cancellation.
func Build(ctx context.Context, source FeatureSource, cfg Config) (*Catalog, error) {
	if source == nil {
		return nil, eris.New("catalog: nil feature source")
	}
	if cfg.CellSizeDeg <= 0 {
		return nil, eris.Errorf("catalog: cell size must be positive, got %v", cfg.CellSizeDeg)
	}

	start := time.Now()
	cat := &Catalog{
		grids:    make(map[spatial.Category]*spatial.Grid, len(spatial.Categories())),
		degraded: make(map[spatial.Category]bool),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, category := range spatial.Categories() {
		g.Go(func() error {
			grid, degraded, err := buildCategory(gctx, source, category, cfg)
			if err != nil {
				return err
			}
			mu.Lock()
			cat.grids[category] = grid
			cat.degraded[category] = degraded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "catalog: build")
	}

	cat.builtAt = time.Now()
	cat.buildDur = time.Since(start)

	zap.L().Info("catalog: build complete",
		zap.Duration("duration", cat.buildDur),
		zap.Int("degraded_categories", cat.degradedCount()),
	)
	return cat, nil
}

// buildCategory loads one category and indexes it. A load failure yields an
// empty degraded grid; only context cancellation propagates as an error.
func buildCategory(ctx context.Context, source FeatureSource, category spatial.Category, cfg Config) (*spatial.Grid, bool, error) {
	grid, err := spatial.NewGrid(cfg.CellSizeDeg)
	if err != nil {
		return nil, false, err
	}

	var set FeatureSet
	loadErr := resilience.Do(ctx, cfg.LoadRetry, func(ctx context.Context) error {
		var err error
		set, err = source.Load(ctx, category)
		return err
	})
	if loadErr != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		zap.L().Warn("catalog: category load failed, serving degraded",
			zap.String("category", string(category)),
			zap.Error(loadErr),
		)
		return grid, true, nil
	}

	var skipped int
	for _, rec := range set.Points {
		f, err := spatial.NewPointFeature(rec.ID, category, spatial.Coordinate{Lat: rec.Lat, Lon: rec.Lon}, rec.Attrs)
		if err != nil {
			skipped++
			continue
		}
		if err := grid.InsertPoint(f); err != nil {
			skipped++
		}
	}
	for _, rec := range set.Lines {
		f, err := spatial.NewLineFeature(rec.ID, category, rec.Coords, rec.Attrs)
		if err != nil {
			skipped++
			continue
		}
		if err := grid.InsertLine(f); err != nil {
			skipped++
		}
	}
	if skipped > 0 {
		zap.L().Warn("catalog: skipped malformed records",
			zap.String("category", string(category)),
			zap.Int("skipped", skipped),
		)
	}

	zap.L().Debug("catalog: category indexed",
		zap.String("category", string(category)),
		zap.Int("points", grid.PointCount()),
		zap.Int("lines", grid.LineCount()),
	)
	return grid, false, nil
}

// Nearest returns the closest feature of the category within searchKm of
// the query point. Degraded categories report Found=false with the Degraded
// flag set so scorers can fall back to floor values rather than erroring.
func (c *Catalog) Nearest(category spatial.Category, lat, lon, searchKm float64) NearestResult {
	res := NearestResult{Category: category, Degraded: c.degraded[category]}

	grid, ok := c.grids[category]
	if !ok || res.Degraded {
		return res
	}

	hits := grid.QueryRadius(lat, lon, searchKm)
	if len(hits.Points) > 0 {
		res.Found = true
		res.SourceID = hits.Points[0].Feature.SourceID
		res.DistanceKm = hits.Points[0].DistanceKm
	}
	if len(hits.Lines) > 0 {
		if !res.Found || hits.Lines[0].DistanceKm < res.DistanceKm {
			res.Found = true
			res.SourceID = hits.Lines[0].Feature.SourceID
			res.DistanceKm = hits.Lines[0].DistanceKm
			res.IsLine = true
		}
	}
	return res
}

// WithinRadius returns every feature of the category within radiusKm,
// sorted by distance.
func (c *Catalog) WithinRadius(category spatial.Category, lat, lon, radiusKm float64) spatial.RadiusResult {
	grid, ok := c.grids[category]
	if !ok {
		return spatial.RadiusResult{}
	}
	return grid.QueryRadius(lat, lon, radiusKm)
}

// Degraded reports whether the category's data failed to load during the
// build.
func (c *Catalog) Degraded(category spatial.Category) bool {
	return c.degraded[category]
}

// BuiltAt returns the completion time of the build that produced this
// catalog.
func (c *Catalog) BuiltAt() time.Time { return c.builtAt }

// Stats returns per-category feature counts and degradation flags.
func (c *Catalog) Stats() Stats {
	s := Stats{BuiltAt: c.builtAt, BuildDuration: c.buildDur}
	for _, category := range spatial.Categories() {
		cs := CategoryStats{Category: category, Degraded: c.degraded[category]}
		if grid, ok := c.grids[category]; ok {
			cs.Points = grid.PointCount()
			cs.Lines = grid.LineCount()
		}
		s.Categories = append(s.Categories, cs)
	}
	return s
}

func (c *Catalog) degradedCount() int {
	n := 0
	for _, d := range c.degraded {
		if d {
			n++
		}
	}
	return n
}
