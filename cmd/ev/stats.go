package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/export"
	"github.com/vanderheijden86/expview/pkg/metrics"
)

func (c *cli) newStatsCmd() *cobra.Command {
	var (
		runs     int
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "stats [files...]",
		Short: "Time the parse, aggregate, build and render pipeline",
		Long: `Run the whole pipeline over the given logs: parse, aggregate, build a
chart of every experiment for each metric and render it as SVG. Prints how
long each stage took.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			paths, err := resolveInputs(args)
			if err != nil {
				return err
			}

			metrics.SetEnabled(true)
			metrics.ResetAll()
			for i := 0; i < runs; i++ {
				if err := c.runPipeline(cmd, paths); err != nil {
					return err
				}
			}

			stats := metrics.AllTimingStats()
			if jsonFlag {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			writeTimingTable(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 1, "Repeat the pipeline this many times")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of a table")
	return cmd
}

func (c *cli) runPipeline(cmd *cobra.Command, paths []string) error {
	rows, err := loadLogs(cmd.Context(), paths)
	if err != nil {
		return err
	}
	colors := aggregate.NewColorAssigner(c.cfg.Chart.Palette...)
	summary := aggregate.Aggregate(rows, colors)
	for _, m := range summary.MetricOptions {
		data := chart.Build(rows, summary.Experiments, m.Value, colors, chart.Aligned(c.cfg.Chart.AlignSteps))
		err := export.RenderChart(io.Discard, "svg", export.ChartOptions{Title: m.Label, Data: data})
		if err != nil && !errors.Is(err, export.ErrNoData) {
			return err
		}
	}
	return nil
}

func writeTimingTable(w io.Writer, stats []metrics.TimingStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No timings recorded")
		return
	}
	fmt.Fprintf(w, "%-16s %6s %10s %10s %10s\n", "stage", "count", "total ms", "avg ms", "max ms")
	for _, s := range stats {
		fmt.Fprintf(w, "%-16s %6d %10.2f %10.3f %10.3f\n", s.Name, s.Count, s.TotalMs, s.AvgMs, s.MaxMs)
	}
}
