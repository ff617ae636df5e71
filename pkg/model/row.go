package model

// Canonical column names of an experiment log.
const (
	ColExperimentID = "experiment_id"
	ColModelType    = "model_type"
	ColLearningRate = "learning_rate"
	ColMetricName   = "metric_name"
	ColStep         = "step"
	ColValue        = "value"
)

// Columns lists the canonical columns in their conventional order.
var Columns = []string{
	ColExperimentID,
	ColModelType,
	ColLearningRate,
	ColMetricName,
	ColStep,
	ColValue,
}

// Row is one parsed record of an experiment log. Rows are never mutated
// after parsing.
type Row struct {
	ExperimentID Cell
	ModelType    Cell
	LearningRate Cell
	MetricName   Cell
	Step         Cell
	Value        Cell

	// Extra holds columns outside the canonical set, keyed by header name.
	Extra map[string]Cell

	// Line is the 1-based line number of the record in its source, 0 if unknown.
	Line int
}

// Experiment returns the experiment id as a string key.
func (r Row) Experiment() string { return r.ExperimentID.String() }

// Metric returns the metric name as a string key.
func (r Row) Metric() string { return r.MetricName.String() }

// IsBlank reports whether every field of the row is empty.
func (r Row) IsBlank() bool {
	if !r.ExperimentID.IsEmpty() || !r.ModelType.IsEmpty() || !r.LearningRate.IsEmpty() ||
		!r.MetricName.IsEmpty() || !r.Step.IsEmpty() || !r.Value.IsEmpty() {
		return false
	}
	for _, c := range r.Extra {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Set assigns a cell by column name, routing unknown columns to Extra.
func (r *Row) Set(column string, c Cell) {
	switch column {
	case ColExperimentID:
		r.ExperimentID = c
	case ColModelType:
		r.ModelType = c
	case ColLearningRate:
		r.LearningRate = c
	case ColMetricName:
		r.MetricName = c
	case ColStep:
		r.Step = c
	case ColValue:
		r.Value = c
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]Cell)
		}
		r.Extra[column] = c
	}
}

// Get returns the cell for a column name. Unknown columns are Empty.
func (r Row) Get(column string) Cell {
	switch column {
	case ColExperimentID:
		return r.ExperimentID
	case ColModelType:
		return r.ModelType
	case ColLearningRate:
		return r.LearningRate
	case ColMetricName:
		return r.MetricName
	case ColStep:
		return r.Step
	case ColValue:
		return r.Value
	default:
		return r.Extra[column]
	}
}
