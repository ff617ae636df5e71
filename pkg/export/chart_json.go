package export

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/expview/pkg/model"
)

// WriteChartJSON encodes the chart in its wire shape
// ({"labels":[...],"datasets":[...]}), indented for humans. Nil slices are
// written as empty arrays.
func WriteChartJSON(w io.Writer, data model.ChartData) error {
	if data.Labels == nil {
		data.Labels = []float64{}
	}
	if data.Datasets == nil {
		data.Datasets = []model.Dataset{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// MarshalChart returns the compact JSON encoding of the chart.
func MarshalChart(data model.ChartData) ([]byte, error) {
	if data.Labels == nil {
		data.Labels = []float64{}
	}
	if data.Datasets == nil {
		data.Datasets = []model.Dataset{}
	}
	return json.Marshal(data)
}
