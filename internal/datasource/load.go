package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/model"
)

// LoadFromSource reads rows from a detected source.
func LoadFromSource(ctx context.Context, src DataSource) ([]model.Row, error) {
	return LoadFromSourceWithOptions(ctx, src, loader.ParseOptions{})
}

// LoadFromSourceWithOptions is LoadFromSource with parser options. The
// options are ignored for SQLite sources, whose rows are already typed.
func LoadFromSourceWithOptions(ctx context.Context, src DataSource, opts loader.ParseOptions) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	debug.Log("datasource: loading %s", src)

	if src.Type == SourceTypeSQLite {
		reader, err := NewSQLiteReader(src)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return reader.LoadRows(ctx)
	}

	format, ok := src.Format()
	if !ok {
		return nil, fmt.Errorf("%s: %w", src.Path, ErrUnsupportedFormat)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no experiment log found at %s", src.Path)
		}
		return nil, fmt.Errorf("failed to open experiment log: %w", err)
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = filepath.Base(src.Path)
	}
	return loader.Parse(f, format, opts)
}

// LoadPath detects the format of path and loads it.
func LoadPath(ctx context.Context, path string) ([]model.Row, DataSource, error) {
	return LoadPathWithOptions(ctx, path, loader.ParseOptions{})
}

// LoadPathWithOptions is LoadPath with parser options.
func LoadPathWithOptions(ctx context.Context, path string, opts loader.ParseOptions) ([]model.Row, DataSource, error) {
	src, err := Detect(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, DataSource{}, fmt.Errorf("no experiment log found at %s", path)
		}
		return nil, DataSource{}, err
	}
	rows, err := LoadFromSourceWithOptions(ctx, src, opts)
	if err != nil {
		return nil, src, err
	}
	return rows, src, nil
}

// LoadPaths loads several logs and concatenates their rows in path order.
// The first failure aborts the load.
func LoadPaths(ctx context.Context, paths []string, opts loader.ParseOptions) ([]model.Row, error) {
	if len(paths) == 0 {
		return nil, loader.ErrNoFile
	}
	var all []model.Row
	for _, p := range paths {
		rows, _, err := LoadPathWithOptions(ctx, p, opts)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		all = append(all, rows...)
	}
	if all == nil {
		all = []model.Row{}
	}
	return all, nil
}
