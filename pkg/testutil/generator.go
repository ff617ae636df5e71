// Package testutil provides deterministic experiment-log fixtures for tests.
package testutil

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/vanderheijden86/expview/pkg/model"
)

// GeneratorConfig controls log generation.
type GeneratorConfig struct {
	Seed        int64    // Random seed for determinism (0 = 42)
	IDPrefix    string   // Prefix for experiment ids (default: "exp")
	Experiments int      // Number of experiments (default: 3)
	Steps       int      // Steps per experiment and metric (default: 10)
	StepStride  int      // Distance between consecutive steps (default: 1)
	Metrics     []string // Metric names (default: loss, accuracy)
	ModelTypes  []string // Model types cycled across experiments
	SkipRate    float64  // Probability a step is missing from a series
	Shuffle     bool     // Emit rows in random order instead of id/metric/step order
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		IDPrefix:    "exp",
		Experiments: 3,
		Steps:       10,
		StepStride:  1,
		Metrics:     []string{"loss", "accuracy"},
		ModelTypes:  []string{"cnn", "transformer", "mlp"},
	}
}

// Generator creates synthetic experiment logs.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config, filling zero fields from
// DefaultConfig.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if cfg.Experiments <= 0 {
		cfg.Experiments = def.Experiments
	}
	if cfg.Steps <= 0 {
		cfg.Steps = def.Steps
	}
	if cfg.StepStride <= 0 {
		cfg.StepStride = def.StepStride
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = def.Metrics
	}
	if len(cfg.ModelTypes) == 0 {
		cfg.ModelTypes = def.ModelTypes
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ExperimentID returns the id of the i-th generated experiment (1-based).
func (g *Generator) ExperimentID(i int) string {
	return fmt.Sprintf("%s_%d", g.cfg.IDPrefix, i)
}

// Rows generates a log. Loss-like metrics decay and everything else rises,
// with a little noise so series are distinguishable.
func (g *Generator) Rows() []model.Row {
	var rows []model.Row
	line := 2
	for e := 1; e <= g.cfg.Experiments; e++ {
		id := g.ExperimentID(e)
		mt := g.cfg.ModelTypes[(e-1)%len(g.cfg.ModelTypes)]
		lr := math.Pow(10, -float64(1+g.rng.Intn(4)))
		for _, metric := range g.cfg.Metrics {
			for s := 0; s < g.cfg.Steps; s++ {
				if g.cfg.SkipRate > 0 && g.rng.Float64() < g.cfg.SkipRate {
					continue
				}
				step := (s + 1) * g.cfg.StepStride
				rows = append(rows, model.Row{
					ExperimentID: model.Text(id),
					ModelType:    model.Text(mt),
					LearningRate: model.Number(lr),
					MetricName:   model.Text(metric),
					Step:         model.Number(float64(step)),
					Value:        model.Number(g.value(metric, s)),
					Line:         line,
				})
				line++
			}
		}
	}
	if g.cfg.Shuffle {
		g.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}
	return rows
}

func (g *Generator) value(metric string, s int) float64 {
	noise := (g.rng.Float64() - 0.5) * 0.02
	progress := 1 - math.Exp(-float64(s+1)/float64(g.cfg.Steps))
	v := progress + noise
	if strings.Contains(metric, "loss") {
		v = 1 - progress + noise
	}
	return math.Round(v*1e4) / 1e4
}

// ToCSV renders rows with the canonical header. Extra columns are not
// written.
func ToCSV(rows []model.Row) string {
	return ToDelimited(rows, ',')
}

// ToDelimited renders rows with the canonical header and the given delimiter.
func ToDelimited(rows []model.Row, comma rune) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = comma
	_ = w.Write(model.Columns)
	for _, r := range rows {
		rec := make([]string, len(model.Columns))
		for i, col := range model.Columns {
			rec[i] = r.Get(col).String()
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return sb.String()
}

// MakeRow builds a fully numeric row.
func MakeRow(id, modelType string, lr float64, metric string, step int, value float64) model.Row {
	return model.Row{
		ExperimentID: model.Text(id),
		ModelType:    model.Text(modelType),
		LearningRate: model.Number(lr),
		MetricName:   model.Text(metric),
		Step:         model.Number(float64(step)),
		Value:        model.Number(value),
	}
}

// ParseRow builds a row from raw field text in canonical column order, using
// the same inference as the loader.
func ParseRow(fields ...string) model.Row {
	var r model.Row
	for i, col := range model.Columns {
		c := model.Empty()
		if i < len(fields) {
			c = model.InferCell(fields[i])
		}
		r.Set(col, c)
	}
	return r
}

// ============================================================================
// Convenience Functions
// ============================================================================

// QuickLog creates a log with default settings.
func QuickLog(experiments, steps int) []model.Row {
	cfg := DefaultConfig()
	cfg.Experiments = experiments
	cfg.Steps = steps
	return New(cfg).Rows()
}

// QuickCSV creates a CSV log with default settings.
func QuickCSV(experiments, steps int) string {
	return ToCSV(QuickLog(experiments, steps))
}

// Empty returns an empty row slice for edge case testing.
func Empty() []model.Row {
	return []model.Row{}
}

// Single returns one experiment with one point.
func Single() []model.Row {
	return []model.Row{MakeRow("exp_1", "cnn", 0.01, "loss", 1, 0.9)}
}

// Staggered returns two experiments whose loss series share only step 2:
// exp_1 logs steps 1 and 2, exp_2 logs steps 2 and 3.
func Staggered() []model.Row {
	return []model.Row{
		MakeRow("exp_1", "cnn", 0.01, "loss", 1, 0.9),
		MakeRow("exp_1", "cnn", 0.01, "loss", 2, 0.7),
		MakeRow("exp_2", "mlp", 0.001, "loss", 2, 0.8),
		MakeRow("exp_2", "mlp", 0.001, "loss", 3, 0.6),
	}
}

// FormatFloat renders v the way Cell.String does.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
