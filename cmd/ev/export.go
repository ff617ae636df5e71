package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/export"
	"github.com/vanderheijden86/expview/pkg/hooks"
)

type exportFlags struct {
	outputs     []string
	metric      string
	experiments []string
	title       string
	align       bool
	width       int
	height      int
	interactive bool
	noHooks     bool
}

func (c *cli) newExportCmd() *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export [files...] -o OUTPUT...",
		Short: "Export a metric chart, summary or database",
		Long: `Export the chosen metric for the chosen experiments. The format of each
output follows its extension: .svg, .png and .json charts, .md summaries
and .sqlite databases that ev can open again.

Commands in .ev/hooks.yaml run before (pre-export) and after (post-export)
the outputs are written. They see EV_EXPORT_PATH, EV_EXPORT_PATHS,
EV_METRIC, EV_EXPERIMENT_COUNT, EV_SOURCE and EV_TIMESTAMP.`,
		Example: `  ev export runs.csv -o loss.svg -o loss.md
  ev export runs.csv --metric accuracy --experiments exp_1,exp_2 -o acc.png
  ev export runs.csv --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd, args, f)
		},
	}
	cmd.Flags().StringArrayVarP(&f.outputs, "output", "o", nil, "Output file; repeat for several formats")
	cmd.Flags().StringVar(&f.metric, "metric", "", "Metric to plot (default: first metric in the log)")
	cmd.Flags().StringSliceVar(&f.experiments, "experiments", nil, "Experiment ids to plot (default: all)")
	cmd.Flags().StringVar(&f.title, "title", "", "Chart title (default: the metric)")
	cmd.Flags().BoolVar(&f.align, "align", false, "Gap-fill series to the shared step axis")
	cmd.Flags().IntVar(&f.width, "width", export.DefaultWidth, "Image width in pixels")
	cmd.Flags().IntVar(&f.height, "height", export.DefaultHeight, "Image height in pixels")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Choose what to export with a wizard")
	cmd.Flags().BoolVar(&f.noHooks, "no-hooks", false, "Skip hooks from .ev/hooks.yaml")
	return cmd
}

func (c *cli) runExport(cmd *cobra.Command, args []string, f exportFlags) error {
	ctx := cmd.Context()
	paths, err := resolveInputs(args)
	if err != nil {
		return err
	}
	rows, err := loadLogs(ctx, paths)
	if err != nil {
		return err
	}

	colors := aggregate.NewColorAssigner(c.cfg.Chart.Palette...)
	summary := aggregate.Aggregate(rows, colors)
	if len(summary.Experiments) == 0 {
		return export.ErrNoData
	}

	align := f.align || c.cfg.Chart.AlignSteps
	if f.interactive {
		wc, err := export.NewWizard(summary).WithIO(cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		if err != nil {
			return err
		}
		f.metric, f.experiments, f.outputs, f.title = wc.Metric, wc.Experiments, wc.Outputs, wc.Title
		align = wc.Align
	}
	if len(f.outputs) == 0 {
		return fmt.Errorf("no outputs given; pass -o FILE or --interactive")
	}

	metric, err := resolveMetric(summary, f.metric)
	if err != nil {
		return err
	}
	selected, err := resolveExperiments(summary, f.experiments)
	if err != nil {
		return err
	}
	title := f.title
	if title == "" {
		title = metric
	}

	data := chart.Build(rows, selected, metric, colors, chart.Aligned(align))
	opts := export.BundleOptions{
		Chart: export.ChartOptions{
			Title:  title,
			Width:  f.width,
			Height: f.height,
			Data:   data,
		},
		Summary: summary,
		Stats:   aggregate.Stats(rows, metric),
		Rows:    rows,
		Colors:  colors,
		Source:  sourceName(paths),
	}

	projectDir, _ := os.Getwd()
	executor, err := hooks.RunHooks(projectDir, hooks.ExportContext{
		ExportPaths:     f.outputs,
		Metric:          metric,
		ExperimentCount: len(selected),
		Source:          opts.Source,
		Timestamp:       time.Now(),
	}, f.noHooks)
	if err != nil {
		return fmt.Errorf("loading hooks: %w", err)
	}
	if executor != nil {
		if err := executor.RunPreExport(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), executor.Summary())
			return err
		}
	}

	if err := export.SaveAll(ctx, opts, f.outputs); err != nil {
		return err
	}
	for _, out := range f.outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	}

	if executor != nil {
		if err := executor.RunPostExport(); err != nil {
			slog.Warn("Post-export hook failed", "err", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), executor.Summary())
	}
	return nil
}
