package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/export"
)

func (c *cli) newSummaryCmd() *cobra.Command {
	var (
		metric   string
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "summary [files...]",
		Short: "Print experiments, metrics and per-experiment statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := resolveInputs(args)
			if err != nil {
				return err
			}
			rows, err := loadLogs(cmd.Context(), paths)
			if err != nil {
				return err
			}

			colors := aggregate.NewColorAssigner(c.cfg.Chart.Palette...)
			summary := aggregate.Aggregate(rows, colors)
			m, err := resolveMetric(summary, metric)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeRobotSummaryOutput(cmd.OutOrStdout(), newRobotSummary(sourceName(paths), rows, summary, colors, m))
			}

			data := chart.Build(rows, summary.Experiments, m, colors, chart.Aligned(c.cfg.Chart.AlignSteps))
			_, err = fmt.Fprint(cmd.OutOrStdout(), export.RenderMarkdown(summary, aggregate.Stats(rows, m), data))
			return err
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "", "Metric for the statistics (default: first metric in the log)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of Markdown")
	return cmd
}
