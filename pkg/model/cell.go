// Package model defines the data types shared by expview's loader,
// aggregator, chart builder, and presentation layers.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// CellKind identifies which variant of a Cell is populated.
type CellKind int

const (
	// CellEmpty is an absent or blank field.
	CellEmpty CellKind = iota
	// CellNumber is a field that parsed as a finite decimal number.
	CellNumber
	// CellText is any other non-blank field.
	CellText
)

// String returns a human-readable label for the kind.
func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	default:
		return "empty"
	}
}

// Cell is a single typed field from a parsed record: Empty, Number or Text.
// The zero value is Empty.
type Cell struct {
	Kind CellKind
	Num  float64
	Text string
}

// Empty returns an empty cell.
func Empty() Cell { return Cell{} }

// Number returns a numeric cell.
func Number(v float64) Cell { return Cell{Kind: CellNumber, Num: v} }

// Text returns a text cell. Blank strings become Empty.
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// InferCell converts a raw field into a typed cell. Blank fields are Empty,
// fields that look like finite decimal numbers become Number, and everything
// else stays Text (trimmed).
func InferCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Cell{}
	}
	if looksNumeric(s) {
		if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return Cell{Kind: CellNumber, Num: v}
		}
	}
	return Cell{Kind: CellText, Text: s}
}

// looksNumeric rejects spellings strconv accepts but a CSV author would not
// mean as a number: hex, underscores, "inf", "nan".
func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.Kind == CellEmpty }

// IsNumber reports whether the cell holds a number.
func (c Cell) IsNumber() bool { return c.Kind == CellNumber }

// Float returns the numeric value and whether the cell is a number.
func (c Cell) Float() (float64, bool) {
	if c.Kind != CellNumber {
		return 0, false
	}
	return c.Num, true
}

// String renders the cell as text. Numbers use the shortest representation
// that round-trips, so 1 renders as "1" and 0.001 as "0.001".
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(o Cell) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case CellNumber:
		return c.Num == o.Num
	case CellText:
		return c.Text == o.Text
	default:
		return true
	}
}

// Value converts the cell to a chart value; only numbers are valid.
func (c Cell) Value() Value {
	if c.Kind != CellNumber {
		return Null()
	}
	return Float(c.Num)
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and empty
// cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return []byte(strconv.FormatFloat(c.Num, 'g', -1, 64)), nil
	case CellText:
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Strings are kept as text
// without numeric inference.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*c = Cell{}
	case float64:
		*c = Number(t)
	case string:
		*c = Text(t)
	case bool:
		*c = Text(strconv.FormatBool(t))
	default:
		return fmt.Errorf("cell: unsupported JSON value %s", string(data))
	}
	return nil
}
