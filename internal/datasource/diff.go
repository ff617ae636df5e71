package datasource

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/expview/pkg/model"
)

// RowsDiff describes how a reloaded log differs from the previous load
type RowsDiff struct {
	// Added lists experiment ids present only in the new rows, in order of
	// first appearance
	Added []string `json:"added"`
	// Removed lists experiment ids present only in the old rows
	Removed []string `json:"removed"`
	// MetricsAdded lists metric names present only in the new rows
	MetricsAdded []string `json:"metrics_added"`
	// MetricsRemoved lists metric names present only in the old rows
	MetricsRemoved []string `json:"metrics_removed"`
	// RowsBefore is the old row count
	RowsBefore int `json:"rows_before"`
	// RowsAfter is the new row count
	RowsAfter int `json:"rows_after"`
}

// Diff compares two row sets by experiment id, metric name and row count.
func Diff(old, new []model.Row) RowsDiff {
	oldExps, oldMetrics := keys(old)
	newExps, newMetrics := keys(new)
	return RowsDiff{
		Added:          missing(newExps, oldExps),
		Removed:        missing(oldExps, newExps),
		MetricsAdded:   missing(newMetrics, oldMetrics),
		MetricsRemoved: missing(oldMetrics, newMetrics),
		RowsBefore:     len(old),
		RowsAfter:      len(new),
	}
}

// keys returns distinct experiment ids and metric names in first-seen order.
func keys(rows []model.Row) (exps, metrics []string) {
	seenExp := make(map[string]bool)
	seenMetric := make(map[string]bool)
	for _, r := range rows {
		if id := r.Experiment(); !seenExp[id] {
			seenExp[id] = true
			exps = append(exps, id)
		}
		if m := r.Metric(); !seenMetric[m] {
			seenMetric[m] = true
			metrics = append(metrics, m)
		}
	}
	return exps, metrics
}

// missing returns the entries of a that are not in b, keeping a's order.
func missing(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	out := []string{}
	for _, s := range a {
		if !in[s] {
			out = append(out, s)
		}
	}
	return out
}

// RowDelta is the change in row count.
func (d RowsDiff) RowDelta() int { return d.RowsAfter - d.RowsBefore }

// Changed reports whether anything differs.
func (d RowsDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 ||
		len(d.MetricsAdded) > 0 || len(d.MetricsRemoved) > 0 || d.RowDelta() != 0
}

// Summary returns a one-line description such as "Reloaded: +2 experiments".
func (d RowsDiff) Summary() string {
	if !d.Changed() {
		return "Reloaded: no changes"
	}

	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s", n, plural(n, "experiment")))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d %s", n, plural(n, "experiment")))
	}
	if n := len(d.MetricsAdded); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d %s", n, plural(n, "metric")))
	}
	if n := len(d.MetricsRemoved); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d %s", n, plural(n, "metric")))
	}
	if len(parts) == 0 {
		delta := d.RowDelta()
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		parts = append(parts, fmt.Sprintf("%+d %s", delta, plural(abs, "row")))
	}
	return "Reloaded: " + strings.Join(parts, ", ")
}

// Notice wraps the summary as an info notice.
func (d RowsDiff) Notice(life time.Duration) model.Notice {
	return model.Notice{
		Severity: model.SeverityInfo,
		Summary:  "Reloaded",
		Detail:   d.Summary(),
		Life:     life,
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
