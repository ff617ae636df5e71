package model

import "strconv"

// Rendering hints applied to every dataset.
const (
	DefaultTension     = 0.3
	DefaultBorderWidth = 2
)

// Value is a nullable chart point. Invalid values encode as JSON null.
type Value struct {
	V     float64
	Valid bool
}

// Float returns a valid value.
func Float(v float64) Value { return Value{V: v, Valid: true} }

// Null returns an invalid value.
func Null() Value { return Value{} }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.V, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// Dataset is one line of the chart, aligned to its own sorted rows.
type Dataset struct {
	Label       string  `json:"label"`
	Data        []Value `json:"data"`
	BorderColor string  `json:"borderColor"`
	Fill        bool    `json:"fill"`
	Tension     float64 `json:"tension"`
	BorderWidth int     `json:"borderWidth"`
}

// ChartData is the chart-ready structure handed to renderers.
type ChartData struct {
	Labels   []float64 `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// EmptyChart returns chart data with non-nil empty slices so it encodes as
// {"labels":[],"datasets":[]}.
func EmptyChart() ChartData {
	return ChartData{Labels: []float64{}, Datasets: []Dataset{}}
}

// IsEmpty reports whether the chart has no datasets.
func (c ChartData) IsEmpty() bool { return len(c.Datasets) == 0 }

// ValueRange returns the min and max valid values across all datasets.
// ok is false when there are none.
func (c ChartData) ValueRange() (lo, hi float64, ok bool) {
	for _, ds := range c.Datasets {
		for _, v := range ds.Data {
			if !v.Valid {
				continue
			}
			if !ok {
				lo, hi, ok = v.V, v.V, true
				continue
			}
			if v.V < lo {
				lo = v.V
			}
			if v.V > hi {
				hi = v.V
			}
		}
	}
	return lo, hi, ok
}
