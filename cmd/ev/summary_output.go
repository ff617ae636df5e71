package main

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/export"
	"github.com/vanderheijden86/expview/pkg/model"
)

// robotSummaryOutput is the machine-readable form of ev summary.
type robotSummaryOutput struct {
	GeneratedAt   string                  `json:"generated_at"`
	DataHash      string                  `json:"data_hash"`
	Source        string                  `json:"source"`
	Rows          int                     `json:"rows"`
	Metric        string                  `json:"metric"`
	MetricOptions []model.MetricOption    `json:"metric_options"`
	Experiments   []robotExperiment       `json:"experiments"`
	Stats         []aggregate.SeriesStats `json:"stats"`
	UsageHints    []string                `json:"usage_hints,omitempty"`
}

type robotExperiment struct {
	ID           string     `json:"id"`
	ModelType    string     `json:"model_type,omitempty"`
	LearningRate model.Cell `json:"learning_rate"`
	Color        string     `json:"color"`
}

func newRobotSummary(source string, rows []model.Row, summary aggregate.Summary, colors *aggregate.ColorAssigner, metric string) robotSummaryOutput {
	exporter := export.NewSQLiteExporter(rows, colors)
	exporter.Config.Source = source
	meta := exporter.Meta(summary)

	exps := make([]robotExperiment, 0, len(summary.Experiments))
	for _, e := range summary.Experiments {
		exps = append(exps, robotExperiment{
			ID:           e.ID,
			ModelType:    e.ModelType,
			LearningRate: e.LearningRate,
			Color:        colors.Color(e.ID),
		})
	}

	stats := aggregate.Stats(rows, metric)
	if stats == nil {
		stats = []aggregate.SeriesStats{}
	}

	return robotSummaryOutput{
		GeneratedAt:   meta.GeneratedAt.Format(time.RFC3339),
		DataHash:      meta.DataHash,
		Source:        source,
		Rows:          meta.RowCount,
		Metric:        metric,
		MetricOptions: summary.MetricOptions,
		Experiments:   exps,
		Stats:         stats,
		UsageHints: []string{
			"ev export <file> --metric " + metric + " -o chart.svg",
			"ev view <file>",
		},
	}
}

func writeRobotSummaryOutput(w io.Writer, out robotSummaryOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
