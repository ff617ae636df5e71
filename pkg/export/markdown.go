package export

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/model"
)

// RenderMarkdown builds a report of the loaded experiments, per-series
// statistics for one metric and the datasets of the current chart. Any of
// stats or chart may be empty; their sections are then omitted.
func RenderMarkdown(summary aggregate.Summary, stats []aggregate.SeriesStats, chart model.ChartData) string {
	var sb strings.Builder

	sb.WriteString("# Experiment Summary\n\n")
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", time.Now().Format(time.RFC1123)))

	metricNames := make([]string, len(summary.MetricOptions))
	for i, m := range summary.MetricOptions {
		metricNames[i] = "`" + m.Value + "`"
	}
	sb.WriteString("| | |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| **Experiments** | %d |\n", len(summary.Experiments)))
	sb.WriteString(fmt.Sprintf("| **Metrics** | %s |\n", orDash(strings.Join(metricNames, ", "))))
	sb.WriteString(fmt.Sprintf("| **Default metric** | %s |\n\n", orDash(summary.DefaultMetric)))

	if len(summary.Experiments) > 0 {
		sb.WriteString("## Experiments\n\n")
		sb.WriteString("| Experiment | Model type | Learning rate |\n")
		sb.WriteString("|------------|------------|---------------|\n")
		for _, e := range summary.Experiments {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				escapeCell(e.ID), escapeCell(orDash(e.ModelType)), orDash(e.LearningRate.String())))
		}
		sb.WriteString("\n")
	}

	if len(stats) > 0 {
		sb.WriteString(fmt.Sprintf("## `%s` statistics\n\n", stats[0].Metric))
		sb.WriteString("| Experiment | Points | Min | Max | Mean | Std dev | Last | Trend |\n")
		sb.WriteString("|------------|-------:|----:|----:|-----:|--------:|-----:|-------|\n")
		for _, s := range stats {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s @ %s | %s |\n",
				escapeCell(s.ExperimentID), s.Count,
				num(s.Min), num(s.Max), num(s.Mean), num(s.StdDev),
				num(s.Last), num(s.LastStep),
				barChart(position(s.Last, s.Min, s.Max))))
		}
		sb.WriteString("\n")
	}

	if !chart.IsEmpty() {
		sb.WriteString("## Chart\n\n")
		sb.WriteString(fmt.Sprintf("%d steps", len(chart.Labels)))
		if len(chart.Labels) > 0 {
			sb.WriteString(fmt.Sprintf(" (%s to %s)", num(chart.Labels[0]), num(chart.Labels[len(chart.Labels)-1])))
		}
		sb.WriteString("\n\n")
		sb.WriteString("| Dataset | Points | Gaps | Color |\n")
		sb.WriteString("|---------|-------:|-----:|-------|\n")
		for _, ds := range chart.Datasets {
			gaps := 0
			for _, v := range ds.Data {
				if !v.Valid {
					gaps++
				}
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | `%s` |\n",
				escapeCell(ds.Label), len(ds.Data)-gaps, gaps, ds.BorderColor))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// SaveMarkdown writes RenderMarkdown's output to path.
func SaveMarkdown(path string, summary aggregate.Summary, stats []aggregate.SeriesStats, chart model.ChartData) error {
	if len(summary.Experiments) == 0 {
		return ErrNoData
	}
	content := RenderMarkdown(summary, stats, chart)
	return os.WriteFile(path, []byte(content), 0644)
}

// position places v within [lo, hi] as a 0-1 fraction.
func position(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// barChart creates a mini bar for a 0-1 value
func barChart(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * 4)
	switch filled {
	case 0:
		return "░░░░"
	case 1:
		return "█░░░"
	case 2:
		return "██░░"
	case 3:
		return "███░"
	default:
		return "████"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escapeCell keeps pipes in ids from splitting table cells.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
