package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/model"
)

// BundleOptions carries everything SaveAll may need for any output format.
type BundleOptions struct {
	Chart   ChartOptions // Path and Format are ignored; each output sets its own
	Summary aggregate.Summary
	Stats   []aggregate.SeriesStats
	Rows    []model.Row
	Colors  *aggregate.ColorAssigner
	Source  string
}

// maxParallelExports bounds concurrent renders in SaveAll.
const maxParallelExports = 4

// SaveAll writes one file per path, choosing the format by extension:
// .svg, .png and .json charts, .md summaries and .sqlite/.db databases.
// Files are written in parallel; the first failure cancels outputs that
// have not started.
func SaveAll(ctx context.Context, opts BundleOptions, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no output paths given")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelExports)

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := saveOne(opts, path); err != nil {
				return fmt.Errorf("export %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func saveOne(opts BundleOptions, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return SaveMarkdown(path, opts.Summary, opts.Stats, opts.Chart.Data)
	case ".sqlite", ".sqlite3", ".db":
		exp := NewSQLiteExporter(opts.Rows, opts.Colors)
		exp.Config.Source = opts.Source
		exp.Config.Title = opts.Chart.Title
		return exp.Export(path)
	default:
		c := opts.Chart
		c.Path = path
		c.Format = ""
		return SaveChart(c)
	}
}
