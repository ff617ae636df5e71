package model

// Experiment is one training run, identified by its experiment_id. Its
// model type and learning rate come from the first row seen with that id.
type Experiment struct {
	ID           string `json:"id"`
	ModelType    string `json:"model_type"`
	LearningRate Cell   `json:"learning_rate"`
}

// MetricOption is one selectable metric.
type MetricOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Selection is the user's chosen subset of experiments and metric.
type Selection struct {
	Experiments []Experiment `json:"experiments"`
	Metric      string       `json:"metric"`
}

// IDs returns the selected experiment ids in selection order.
func (s Selection) IDs() []string {
	ids := make([]string, len(s.Experiments))
	for i, e := range s.Experiments {
		ids[i] = e.ID
	}
	return ids
}
