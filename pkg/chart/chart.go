// Package chart turns a selection of experiments and a metric into
// chart-ready series.
//
// By default each dataset holds the values of its own rows in step order,
// so an experiment that skipped a step has a shorter series than the label
// axis and renderers that plot by index will shift it. WithAlignedSteps
// gap-fills every dataset to the label axis with nulls instead.
package chart

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
)

// ColorLookup resolves an experiment's display color.
type ColorLookup interface {
	Color(id string) string
}

// Option configures Build.
type Option func(*options)

type options struct {
	aligned bool
}

// WithAlignedSteps gap-fills each dataset to the shared label axis.
func WithAlignedSteps() Option {
	return func(o *options) { o.aligned = true }
}

// Aligned sets step alignment from a flag.
func Aligned(on bool) Option {
	return func(o *options) { o.aligned = on }
}

// Build derives the chart for the selected experiments and metric. An empty
// selection or empty rows yields an empty chart. Experiments are ordered by
// SuffixKey; a repeated selection of the same id produces one dataset.
func Build(rows []model.Row, selected []model.Experiment, metric string, colors ColorLookup, opts ...Option) model.ChartData {
	if len(selected) == 0 || len(rows) == 0 {
		return model.EmptyChart()
	}

	start := time.Now()
	defer func() {
		d := time.Since(start)
		metrics.SeriesBuild.Record(d)
		debug.LogTiming("chart.Build", d)
	}()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ordered := SortExperiments(dedupe(selected))

	byID := make(map[string][]model.Row, len(ordered))
	for _, e := range ordered {
		byID[e.ID] = nil
	}
	for _, r := range rows {
		if r.Metric() != metric {
			continue
		}
		id := r.Experiment()
		if list, ok := byID[id]; ok {
			byID[id] = append(list, r)
		}
	}

	stepSet := make(map[float64]struct{})
	series := make([][]model.Row, len(ordered))
	for i, e := range ordered {
		list := byID[e.ID]
		sortByStep(list)
		series[i] = list
		for _, r := range list {
			if s, ok := r.Step.Float(); ok {
				stepSet[s] = struct{}{}
			}
		}
	}

	labels := make([]float64, 0, len(stepSet))
	for s := range stepSet {
		labels = append(labels, s)
	}
	sort.Float64s(labels)

	out := model.ChartData{
		Labels:   labels,
		Datasets: make([]model.Dataset, 0, len(ordered)),
	}
	for i, e := range ordered {
		var data []model.Value
		if o.aligned {
			data = alignedValues(series[i], labels)
		} else {
			data = make([]model.Value, len(series[i]))
			for j, r := range series[i] {
				data[j] = r.Value.Value()
			}
		}
		color := ""
		if colors != nil {
			color = colors.Color(e.ID)
		}
		out.Datasets = append(out.Datasets, model.Dataset{
			Label:       DatasetLabel(e.ID, metric),
			Data:        data,
			BorderColor: color,
			Fill:        false,
			Tension:     model.DefaultTension,
			BorderWidth: model.DefaultBorderWidth,
		})
	}
	return out
}

// DatasetLabel names a series.
func DatasetLabel(id, metric string) string {
	return id + " - " + metric
}

// alignedValues places each row's value at its step's label index. Rows
// without a numeric step have no place on the axis and are dropped; when a
// step repeats the later row wins.
func alignedValues(rows []model.Row, labels []float64) []model.Value {
	data := make([]model.Value, len(labels))
	for _, r := range rows {
		s, ok := r.Step.Float()
		if !ok {
			continue
		}
		idx := sort.SearchFloat64s(labels, s)
		if idx < len(labels) && labels[idx] == s {
			data[idx] = r.Value.Value()
		}
	}
	return data
}

// sortByStep orders rows by numeric step, keeping file order for ties and
// putting rows with a non-numeric step last.
func sortByStep(rows []model.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i].Step.Float()
		b, bok := rows[j].Step.Float()
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
}

func dedupe(exps []model.Experiment) []model.Experiment {
	seen := make(map[string]bool, len(exps))
	out := make([]model.Experiment, 0, len(exps))
	for _, e := range exps {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// SuffixKey parses the integer after the first underscore of id, so
// "exp_12" gives 12 and "run_3_b" gives 3. ok is false when id has no
// underscore or that token is not an integer.
func SuffixKey(id string) (int, bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortExperiments returns a copy of exps ordered by SuffixKey. Ids without
// a numeric suffix follow all numbered ones in their original order.
func SortExperiments(exps []model.Experiment) []model.Experiment {
	out := make([]model.Experiment, len(exps))
	copy(out, exps)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := SuffixKey(out[i].ID)
		b, bok := SuffixKey(out[j].ID)
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
	return out
}
