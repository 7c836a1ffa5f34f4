package main

import (
	"fmt"
	"path/filepath"

	"github.com/cwbudde/geneticweights/internal/store"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var plotOut string

var plotCmd = &cobra.Command{
	Use:   "plot <run-id>",
	Short: "Plot fitness per round of a recorded run",
	Long:  `Renders the round fitness and the best fitness so far of a run to a PNG image.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotOut, "out", "", "Output PNG path (default <data-dir>/runs/<run-id>/fitness.png)")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}
	if _, err := runStore.LoadRun(runID); err != nil {
		return err
	}

	reader, err := store.NewTraceReader(runStore.BaseDir(), runID)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	out := plotOut
	if out == "" {
		out = filepath.Join(runStore.RunDir(runID), "fitness.png")
	}
	if err := plotTrace(entries, "Run "+shortID(runID), out); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d rounds)\n", out, len(entries))
	return nil
}

// plotTrace writes a line chart of round fitness and best fitness to path.
func plotTrace(entries []store.TraceEntry, title, path string) error {
	if len(entries) == 0 {
		return fmt.Errorf("trace has no rounds to plot")
	}

	fitness := make(plotter.XYs, len(entries))
	best := make(plotter.XYs, len(entries))
	for i, e := range entries {
		fitness[i].X = float64(e.Round)
		fitness[i].Y = e.Fitness
		best[i].X = float64(e.Round)
		best[i].Y = e.BestFitness
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Round"
	p.Y.Label.Text = "Fitness"
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, "round", fitness, "best", best); err != nil {
		return fmt.Errorf("failed to add lines: %w", err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
