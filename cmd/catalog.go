package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridatlas/siterank-cli/internal/catalog"
	"github.com/gridatlas/siterank-cli/internal/spatial"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the infrastructure catalog",
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Build the catalog and print per-category feature counts",
	RunE:  runCatalogStats,
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a catalog rebuild from the feature store",
	RunE:  runCatalogRefresh,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load shapefiles into the SQLite feature store",
	Long: `Read one shapefile per category from a directory and upsert the
features into the SQLite feature store, so later runs index from SQLite
instead of re-parsing shapefiles.

Shapefiles are looked up by category name: substation.shp, transmission.shp,
fiber.shp, ixp.shp, water.shp, gsp.shp. Missing files are skipped.`,
	RunE: runCatalogImport,
}

func init() {
	catalogImportCmd.Flags().String("shapefile-dir", "", "directory of per-category shapefiles (required)")
	catalogImportCmd.Flags().String("sqlite", "", "target SQLite path (default: source.sqlite_path)")
	_ = catalogImportCmd.MarkFlagRequired("shapefile-dir")

	catalogCmd.AddCommand(catalogStatsCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogStats(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	cat, err := engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	stats := cat.Stats()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Built\t%s (%s)\n", stats.BuiltAt.Format("2006-01-02 15:04:05"), stats.BuildDuration.Round(time.Millisecond))
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "Category\tPoints\tLines\tDegraded")
	for _, cs := range stats.Categories {
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\n", cs.Category, cs.Points, cs.Lines, cs.Degraded)
	}

	cacheStats := engine.CacheStats()
	fmt.Fprintln(w, "\t")
	fmt.Fprintf(w, "Cache\t%d hits, %d stale serves, %d rebuilds, %d build errors\n",
		cacheStats.Hits, cacheStats.StaleServes, cacheStats.Rebuilds, cacheStats.BuildErrors)
	return w.Flush()
}

func runCatalogRefresh(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine.InvalidateCatalog()
	cat, err := engine.Snapshot(ctx)
	if err != nil {
		return err
	}

	stats := cat.Stats()
	fmt.Printf("catalog rebuilt at %s in %s\n",
		stats.BuiltAt.Format("2006-01-02 15:04:05"),
		stats.BuildDuration.Round(time.Millisecond))
	return nil
}

func runCatalogImport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, _ := cmd.Flags().GetString("shapefile-dir")
	dbPath, _ := cmd.Flags().GetString("sqlite")
	if dbPath == "" {
		dbPath = cfg.Source.SQLitePath
	}
	if dbPath == "" {
		return eris.New("catalog import: no SQLite path configured")
	}

	paths := map[spatial.Category]string{}
	for _, cat := range spatial.Categories() {
		paths[cat] = filepath.Join(dir, string(cat)+".shp")
	}
	source := catalog.NewShapefileSource(paths)

	store, err := catalog.NewSQLiteSource(dbPath)
	if err != nil {
		return eris.Wrap(err, "catalog import: open sqlite")
	}
	defer store.Close()

	log := zap.L().With(zap.String("command", "catalog import"))
	for _, cat := range spatial.Categories() {
		set, err := source.Load(ctx, cat)
		if err != nil {
			return eris.Wrapf(err, "catalog import: read %s shapefile", cat)
		}
		for _, rec := range set.Points {
			if err := store.InsertPoint(ctx, cat, rec); err != nil {
				return eris.Wrapf(err, "catalog import: insert point %s", rec.ID)
			}
		}
		for _, rec := range set.Lines {
			if err := store.InsertLine(ctx, cat, rec); err != nil {
				return eris.Wrapf(err, "catalog import: insert line %s", rec.ID)
			}
		}
		log.Info("category imported",
			zap.String("category", string(cat)),
			zap.Int("points", len(set.Points)),
			zap.Int("lines", len(set.Lines)),
		)
	}

	fmt.Printf("imported shapefiles from %s into %s\n", dir, dbPath)
	return nil
}
