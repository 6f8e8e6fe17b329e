package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridatlas/siterank-cli/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the configured scoring personas",
	RunE:  runPersonas,
}

func init() {
	rootCmd.AddCommand(personasCmd)
}

func runPersonas(_ *cobra.Command, _ []string) error {
	registry, err := persona.LoadRegistry(cfg.Personas.File)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tClass\tCapacity (MW)\tTop weights")
	for _, p := range registry.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f / %.0f / %.0f\t%s\n",
			p.ID, p.Name, p.Class,
			p.Capacity.MinMW, p.Capacity.IdealMW, p.Capacity.MaxMW,
			topWeights(p.Weights),
		)
	}
	return w.Flush()
}

// topWeights names the two heaviest components of a weight vector.
func topWeights(w persona.Weights) string {
	names := [8]string{"capacity", "stage", "technology", "grid_infra", "digital_infra", "water", "lcoe", "tnuos"}
	v := w.Vector()

	first, second := -1, -1
	for i := range v {
		if first == -1 || v[i] > v[first] {
			second = first
			first = i
		} else if second == -1 || v[i] > v[second] {
			second = i
		}
	}
	return fmt.Sprintf("%s %.2f, %s %.2f", names[first], v[first], names[second], v[second])
}
