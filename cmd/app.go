package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/config"
	"github.com/gridatlas/siterank-cli/internal/persona"
	"github.com/gridatlas/siterank-cli/internal/resilience"
	"github.com/gridatlas/siterank-cli/internal/scoring"
	"github.com/gridatlas/siterank-cli/internal/spatial"
	"github.com/gridatlas/siterank-cli/internal/tnuos"
)

// buildSource constructs the feature store backend from configuration. The
// returned cleanup releases any held connections.
func buildSource(ctx context.Context, cfg *config.Config) (catalog.FeatureSource, func(), error) {
	switch cfg.Source.Driver {
	case "postgres":
		if cfg.Source.DatabaseURL == "" {
			return nil, nil, eris.New("source.database_url is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, cfg.Source.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "connect postgres")
		}
		var limiter *rate.Limiter
		if cfg.Source.RateLimitPerSec > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Source.RateLimitPerSec), 1)
		}
		return catalog.NewPostgresSource(pool, limiter), pool.Close, nil

	case "sqlite":
		src, err := catalog.NewSQLiteSource(cfg.Source.SQLitePath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open sqlite")
		}
		return src, func() { _ = src.Close() }, nil

	case "shapefile":
		if cfg.Source.ShapefileDir == "" {
			return nil, nil, eris.New("source.shapefile_dir is required for the shapefile driver")
		}
		paths := map[spatial.Category]string{}
		for _, cat := range spatial.Categories() {
			paths[cat] = filepath.Join(cfg.Source.ShapefileDir, string(cat)+".shp")
		}
		return catalog.NewShapefileSource(paths), func() {}, nil

	default:
		return nil, nil, eris.Errorf("unknown source.driver %q", cfg.Source.Driver)
	}
}

// buildEngine wires the catalog cache, persona registry, and tariff table
// into a scoring engine.
func buildEngine(ctx context.Context, cfg *config.Config) (*scoring.Engine, func(), error) {
	source, cleanup, err := buildSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	catCfg := catalog.Config{
		CellSizeDeg: cfg.Catalog.CellSizeDeg,
		LoadRetry: resilience.RetryConfig{
			MaxAttempts:    cfg.Catalog.LoadMaxAttempts,
			InitialBackoff: time.Duration(cfg.Catalog.LoadBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Catalog.LoadMaxBackoffMs) * time.Millisecond,
		},
	}
	cache, err := catalog.NewCache(
		time.Duration(cfg.Catalog.TTLMinutes)*time.Minute,
		func(ctx context.Context) (*catalog.Catalog, error) {
			return catalog.Build(ctx, source, catCfg)
		},
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	registry, err := persona.LoadRegistry(cfg.Personas.File)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var zones *tnuos.Table
	if cfg.TNUoS.File != "" {
		zones, err = tnuos.LoadTable(cfg.TNUoS.File)
	} else {
		zones, err = tnuos.NewTable(tnuos.DefaultZones())
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	engine, err := scoring.NewEngine(cache, registry, zones, cfg.Scoring)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}
