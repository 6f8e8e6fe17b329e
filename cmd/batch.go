package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/gridatlas/siterank-cli/internal/batch"
	"github.com/gridatlas/siterank-cli/internal/scoring"
	"github.com/gridatlas/siterank-cli/internal/spatial"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score a CSV of candidate sites and rank them",
	Long: `Score every site in a CSV file under one persona and rank the results.

The input CSV needs a header row with at least: id, lat, lon, capacity_mw.
Optional columns: technology, stage, baseline_lcoe, resource_quality.

A site that fails validation is reported in the failures section without
aborting the rest of the batch.

Examples:
  # Rank sites for a hyperscaler with the default weighted sum
  batch --input sites.csv --persona hyperscaler

  # TOPSIS cohort ranking, JSON report to a file
  batch --input sites.csv --persona utility-developer --method topsis --format json --output report.json`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.String("input", "", "input CSV path (required)")
	f.String("persona", "", "persona id (required)")
	f.String("method", "weighted-sum", "composite method: weighted-sum or topsis")
	f.Int("concurrency", 0, "worker count (0=config default)")
	f.String("format", "table", "output format: table, csv, or json")
	f.String("output", "", "output file path (default: stdout)")

	_ = batchCmd.MarkFlagRequired("input")
	_ = batchCmd.MarkFlagRequired("persona")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	inputPath, _ := f.GetString("input")
	personaID, _ := f.GetString("persona")
	methodStr, _ := f.GetString("method")
	concurrency, _ := f.GetInt("concurrency")
	format, _ := f.GetString("format")
	outputPath, _ := f.GetString("output")

	method, err := scoring.ParseMethod(methodStr)
	if err != nil {
		return err
	}

	inputs, err := readProjectCSV(inputPath)
	if err != nil {
		return err
	}

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}
	orch, err := batch.New(engine, concurrency)
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx, inputs, personaID, method)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "batch: create %s", outputPath)
		}
		defer file.Close()
		out = file
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		return writeReportCSV(out, report)
	case "table":
		writeReportTable(out, report)
		return nil
	default:
		return eris.Errorf("batch: unknown format %q", format)
	}
}

// readProjectCSV parses the candidate-site CSV. Column order is free; the
// header row names the fields.
func readProjectCSV(path string) ([]scoring.ProjectInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read header of %s", path)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"id", "lat", "lon", "capacity_mw"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("batch: %s is missing required column %q", path, required)
		}
	}

	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var inputs []scoring.ProjectInput
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: %s line %d", path, line)
		}

		lat, err := strconv.ParseFloat(get(rec, "lat"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: %s line %d: lat", path, line)
		}
		lon, err := strconv.ParseFloat(get(rec, "lon"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: %s line %d: lon", path, line)
		}
		capacity, err := strconv.ParseFloat(get(rec, "capacity_mw"), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: %s line %d: capacity_mw", path, line)
		}

		input := scoring.ProjectInput{
			ProjectID:  get(rec, "id"),
			Coord:      spatial.Coordinate{Lat: lat, Lon: lon},
			CapacityMW: capacity,
			Technology: get(rec, "technology"),
			Stage:      get(rec, "stage"),
		}
		if s := get(rec, "baseline_lcoe"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: %s line %d: baseline_lcoe", path, line)
			}
			input.BaselineLCOE = &v
		}
		if s := get(rec, "resource_quality"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: %s line %d: resource_quality", path, line)
			}
			input.ResourceQuality = &v
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func writeReportCSV(out io.Writer, report *batch.Report) error {
	w := csv.NewWriter(out)
	header := append([]string{"rank", "project_id", "score", "rating", "label"}, scoring.ComponentNames[:]...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "batch: write csv")
	}
	for i, res := range report.Results {
		row := []string{
			strconv.Itoa(i + 1),
			res.ProjectID,
			strconv.FormatFloat(res.Score, 'f', 1, 64),
			strconv.FormatFloat(res.Rating, 'f', 1, 64),
			res.RatingLabel,
		}
		for _, v := range res.Components.Vector() {
			row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "batch: write csv")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "batch: flush csv")
}

func writeReportTable(out io.Writer, report *batch.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Run\t%s\n", report.RunID)
	fmt.Fprintf(w, "Persona\t%s\n", report.PersonaID)
	fmt.Fprintf(w, "Method\t%s\n", report.Method)
	fmt.Fprintf(w, "Scored\t%d ok, %d failed in %s\n", len(report.Results), len(report.Failures), report.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "\t")

	fmt.Fprintln(w, "Rank\tProject\tScore\tRating\tLabel")
	for i, res := range report.Results {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%s\n", i+1, res.ProjectID, res.Score, res.Rating, res.RatingLabel)
	}
	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "\t")
		fmt.Fprintln(w, "Failed\tReason")
		for _, fail := range report.Failures {
			fmt.Fprintf(w, "%s\t%s\n", fail.ProjectID, fail.Reason)
		}
	}
	_ = w.Flush()
}
