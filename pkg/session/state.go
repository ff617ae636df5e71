package session

import (
	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/model"
)

// State is a point-in-time view of a session for display or encoding.
type State struct {
	Source         string               `json:"source"`
	Rows           int                  `json:"rows"`
	Experiments    []model.Experiment   `json:"experiments"`
	MetricOptions  []model.MetricOption `json:"metric_options"`
	SelectedMetric string               `json:"selected_metric"`
	Selected       []string             `json:"selected"`
	Colors         map[string]string    `json:"colors"`
	Loading        bool                 `json:"loading"`
	ChartLoading   bool                 `json:"chart_loading"`
}

// Snapshot captures the session's state.
func (s *Session) Snapshot() State {
	chartLoading := s.debouncer.Loading()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Source:         s.source,
		Rows:           len(s.rows),
		Experiments:    s.summary.Experiments,
		MetricOptions:  s.summary.MetricOptions,
		SelectedMetric: s.metric,
		Selected:       aggregate.ExperimentIDs(s.selected),
		Colors:         s.colors.Assigned(),
		Loading:        s.loading,
		ChartLoading:   chartLoading,
	}
}
