// Package aggregate derives experiments, metric options and display colors
// from parsed log rows.
package aggregate

import (
	"time"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
)

// FallbackMetric is selected when a log offers no metric.
const FallbackMetric = "loss"

// Summary is everything the viewer needs to offer a selection.
type Summary struct {
	Experiments   []model.Experiment   `json:"experiments"`
	MetricOptions []model.MetricOption `json:"metric_options"`
	DefaultMetric string               `json:"default_metric"`
}

// Aggregate lists distinct experiments and metrics in first-occurrence
// order. Each experiment takes its model type and learning rate from the
// first row carrying its id; later rows are not checked for consistency.
// When colors is non-nil every experiment not seen before is given a color.
func Aggregate(rows []model.Row, colors *ColorAssigner) Summary {
	start := time.Now()
	defer func() { metrics.Aggregate.Record(time.Since(start)) }()

	s := Summary{
		Experiments:   []model.Experiment{},
		MetricOptions: []model.MetricOption{},
	}

	seenExp := make(map[string]bool)
	seenMetric := make(map[string]bool)
	for i := range rows {
		r := &rows[i]
		id := r.Experiment()
		if !seenExp[id] {
			seenExp[id] = true
			s.Experiments = append(s.Experiments, model.Experiment{
				ID:           id,
				ModelType:    r.ModelType.String(),
				LearningRate: r.LearningRate,
			})
		}
		m := r.Metric()
		if !seenMetric[m] {
			seenMetric[m] = true
			s.MetricOptions = append(s.MetricOptions, model.MetricOption{Label: m, Value: m})
		}
	}

	s.DefaultMetric = FallbackMetric
	if len(s.MetricOptions) > 0 && s.MetricOptions[0].Value != "" {
		s.DefaultMetric = s.MetricOptions[0].Value
	}

	if colors != nil {
		colors.AssignAll(ExperimentIDs(s.Experiments))
	}

	debug.Log("aggregate: %d rows, %d experiments, %d metrics", len(rows), len(s.Experiments), len(s.MetricOptions))
	return s
}

// ExperimentIDs returns the ids of exps in order.
func ExperimentIDs(exps []model.Experiment) []string {
	ids := make([]string, len(exps))
	for i, e := range exps {
		ids[i] = e.ID
	}
	return ids
}

// HasMetric reports whether name is one of opts.
func HasMetric(opts []model.MetricOption, name string) bool {
	for _, o := range opts {
		if o.Value == name {
			return true
		}
	}
	return false
}

// ResolveMetric keeps current when it is still offered, otherwise falls
// back to the summary's default.
func (s Summary) ResolveMetric(current string) string {
	if current != "" && HasMetric(s.MetricOptions, current) {
		return current
	}
	return s.DefaultMetric
}

// Find returns the experiment with the given id.
func (s Summary) Find(id string) (model.Experiment, bool) {
	for _, e := range s.Experiments {
		if e.ID == id {
			return e, true
		}
	}
	return model.Experiment{}, false
}
