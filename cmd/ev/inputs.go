package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/expview/internal/datasource"
	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/model"
)

// resolveInputs returns the logs named on the command line, or the freshest
// log in the working directory when none are named.
func resolveInputs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	sources, err := datasource.Discover(".")
	if err != nil {
		return nil, err
	}
	src, err := datasource.SelectFreshest(sources)
	if err != nil {
		return nil, err
	}
	slog.Debug("Using freshest log", "source", src.String())
	return []string{src.Path}, nil
}

// sourceName labels rows loaded from paths.
func sourceName(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}

// loadLogs reads paths into one row set. Parse warnings are logged.
func loadLogs(ctx context.Context, paths []string) ([]model.Row, error) {
	return datasource.LoadPaths(ctx, paths, loader.ParseOptions{
		WarningHandler: func(msg string) {
			slog.Warn("Parse warning", "msg", msg)
		},
	})
}

// resolveExperiments looks ids up in summary. No ids selects every
// experiment.
func resolveExperiments(summary aggregate.Summary, ids []string) ([]model.Experiment, error) {
	if len(ids) == 0 {
		return summary.Experiments, nil
	}
	out := make([]model.Experiment, 0, len(ids))
	for _, id := range ids {
		e, ok := summary.Find(strings.TrimSpace(id))
		if !ok {
			return nil, fmt.Errorf("unknown experiment %q", id)
		}
		out = append(out, e)
	}
	return out, nil
}

// resolveMetric picks the metric to plot, falling back to the log's
// default.
func resolveMetric(summary aggregate.Summary, metric string) (string, error) {
	if metric == "" {
		return summary.DefaultMetric, nil
	}
	if !aggregate.HasMetric(summary.MetricOptions, metric) {
		return "", fmt.Errorf("metric %q not found in log", metric)
	}
	return metric, nil
}
