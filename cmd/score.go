package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridatlas/siterank-cli/internal/scoring"
	"github.com/gridatlas/siterank-cli/internal/spatial"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single candidate site against a persona",
	Long: `Score one candidate site. Queries the infrastructure catalog for the
nearest substation, transmission line, fiber route, IXP, and water source,
resolves the TNUoS tariff zone, and combines the eight component scores
with the persona's weights.

Examples:
  # Score a 100 MW solar site for the hyperscaler persona
  score --id site-001 --lat 52.01 --lon -1.49 --capacity 100 --tech solar --stage consented --persona hyperscaler

  # Emit the full result as JSON
  score --id site-001 --lat 52.01 --lon -1.49 --capacity 100 --persona utility-developer --format json`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("id", "", "project identifier (required)")
	f.Float64("lat", 0, "site latitude in decimal degrees")
	f.Float64("lon", 0, "site longitude in decimal degrees")
	f.Float64("capacity", 0, "project capacity in MW")
	f.String("tech", "", "generation technology (solar, wind, battery, ...)")
	f.String("stage", "", "development stage code")
	f.String("persona", "", "persona id (required)")
	f.Float64("lcoe", 0, "baseline LCOE in £/MWh (0=technology default)")
	f.Float64("quality", -1, "resource quality in [0,1] (-1=average)")
	f.String("format", "table", "output format: table or json")

	_ = scoreCmd.MarkFlagRequired("id")
	_ = scoreCmd.MarkFlagRequired("persona")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	id, _ := f.GetString("id")
	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	capacity, _ := f.GetFloat64("capacity")
	tech, _ := f.GetString("tech")
	stage, _ := f.GetString("stage")
	personaID, _ := f.GetString("persona")
	lcoe, _ := f.GetFloat64("lcoe")
	quality, _ := f.GetFloat64("quality")
	format, _ := f.GetString("format")

	input := scoring.ProjectInput{
		ProjectID:  id,
		Coord:      spatial.Coordinate{Lat: lat, Lon: lon},
		CapacityMW: capacity,
		Technology: tech,
		Stage:      stage,
	}
	if lcoe > 0 {
		input.BaselineLCOE = &lcoe
	}
	if quality >= 0 {
		input.ResourceQuality = &quality
	}

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := engine.ScoreProject(ctx, input, personaID)
	if err != nil {
		return err
	}

	zap.L().Info("site scored",
		zap.String("project_id", res.ProjectID),
		zap.String("persona", res.PersonaID),
		zap.Float64("score", res.Score),
		zap.Float64("rating", res.Rating),
	)

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printScoreTable(res)
	return nil
}

func printScoreTable(res *scoring.CompositeResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Project\t%s\n", res.ProjectID)
	fmt.Fprintf(w, "Persona\t%s\n", res.PersonaID)
	fmt.Fprintf(w, "Score\t%.1f\n", res.Score)
	fmt.Fprintf(w, "Rating\t%.1f (%s)\n", res.Rating, res.RatingLabel)
	fmt.Fprintln(w, "\t")

	cv := res.Components.Vector()
	for i, name := range scoring.ComponentNames {
		fmt.Fprintf(w, "%s\t%.1f\n", name, cv[i])
	}
	fmt.Fprintln(w, "\t")

	for _, row := range []struct {
		label string
		found bool
		id    string
		km    float64
	}{
		{"Substation", res.Facts.Substation.Found, res.Facts.Substation.SourceID, res.Facts.Substation.DistanceKm},
		{"Transmission", res.Facts.Transmission.Found, res.Facts.Transmission.SourceID, res.Facts.Transmission.DistanceKm},
		{"Fiber", res.Facts.Fiber.Found, res.Facts.Fiber.SourceID, res.Facts.Fiber.DistanceKm},
		{"IXP", res.Facts.IXP.Found, res.Facts.IXP.SourceID, res.Facts.IXP.DistanceKm},
		{"Water", res.Facts.Water.Found, res.Facts.Water.SourceID, res.Facts.Water.DistanceKm},
	} {
		if row.found {
			fmt.Fprintf(w, "%s\t%.1f km (%s)\n", row.label, row.km, row.id)
		} else {
			fmt.Fprintf(w, "%s\tnone within %.0f km\n", row.label, res.Facts.SearchRadiusKm)
		}
	}
	if res.Facts.Zone != nil {
		fmt.Fprintf(w, "TNUoS zone\t%s (£%.2f/kW)\n", res.Facts.Zone.Name, res.Facts.Zone.Tariff)
	} else {
		fmt.Fprintf(w, "TNUoS zone\toutside zone table\n")
	}
	_ = w.Flush()
}
