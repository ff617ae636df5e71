package aggregate

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/expview/pkg/model"
)

// SeriesStats summarizes one experiment's values for a metric. Only numeric
// values count.
type SeriesStats struct {
	ExperimentID string  `json:"experiment_id"`
	Metric       string  `json:"metric"`
	Count        int     `json:"count"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stddev"`
	Last         float64 `json:"last"`
	LastStep     float64 `json:"last_step"`
}

// Stats computes per-experiment statistics of metric in first-occurrence
// order. Experiments without a numeric value for metric are omitted. Last
// is the value at the highest numeric step, or the last row in file order
// when no step is numeric (LastStep is then 0).
func Stats(rows []model.Row, metric string) []SeriesStats {
	type point struct {
		step    float64
		hasStep bool
		v       float64
	}
	byID := make(map[string][]point)
	var order []string
	for _, r := range rows {
		if r.Metric() != metric {
			continue
		}
		v, ok := r.Value.Float()
		if !ok {
			continue
		}
		id := r.Experiment()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		s, hasStep := r.Step.Float()
		byID[id] = append(byID[id], point{step: s, hasStep: hasStep, v: v})
	}

	out := make([]SeriesStats, 0, len(order))
	for _, id := range order {
		pts := byID[id]
		vals := make([]float64, len(pts))
		for i, p := range pts {
			vals[i] = p.v
		}

		st := SeriesStats{
			ExperimentID: id,
			Metric:       metric,
			Count:        len(vals),
			Min:          floats.Min(vals),
			Max:          floats.Max(vals),
		}
		if len(vals) > 1 {
			st.Mean, st.StdDev = stat.MeanStdDev(vals, nil)
		} else {
			st.Mean = vals[0]
		}

		last := pts[len(pts)-1]
		stepped := pts[:0:0]
		for _, p := range pts {
			if p.hasStep {
				stepped = append(stepped, p)
			}
		}
		if len(stepped) > 0 {
			sort.SliceStable(stepped, func(i, j int) bool { return stepped[i].step < stepped[j].step })
			last = stepped[len(stepped)-1]
		}
		st.Last = last.v
		if last.hasStep {
			st.LastStep = last.step
		}
		out = append(out, st)
	}
	return out
}
