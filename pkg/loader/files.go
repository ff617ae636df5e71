package loader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/expview/pkg/model"
)

// maxParallelLoads bounds concurrent file parses in LoadFiles.
const maxParallelLoads = 4

// LoadFiles parses several logs in parallel and concatenates their rows in
// the order the paths were given. The first failure cancels the rest.
func LoadFiles(ctx context.Context, paths []string) ([]model.Row, error) {
	return LoadFilesWithOptions(ctx, paths, ParseOptions{})
}

// LoadFilesWithOptions is LoadFiles with custom options applied to every file.
func LoadFilesWithOptions(ctx context.Context, paths []string, opts ParseOptions) ([]model.Row, error) {
	if len(paths) == 0 {
		return nil, ErrNoFile
	}

	results := make([][]model.Row, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := opts
			o.Source = ""
			rows, err := LoadRowsFromFileWithOptions(path, o)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, rows := range results {
		total += len(rows)
	}
	all := make([]model.Row, 0, total)
	for _, rows := range results {
		all = append(all, rows...)
	}
	if opts.MaxRows > 0 && len(all) > opts.MaxRows {
		return nil, &IngestError{Source: "combined logs", Err: fmt.Errorf("%w: %d rows across %d files", ErrTooManyRows, len(all), len(paths))}
	}
	return all, nil
}
