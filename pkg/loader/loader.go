// Package loader turns experiment log files into model rows.
//
// Logs are header-delimited tables (CSV, TSV or the first sheet of an
// .xlsx workbook). Every field is typed independently: anything that parses
// as a finite number becomes a Number cell, blank fields become Empty and
// the rest stay Text. Rows whose fields are all Empty are dropped; nothing
// else is validated, so a malformed record simply yields odd cells.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
)

// Sentinel errors.
var (
	ErrNoFile           = errors.New("no file selected")
	ErrUploadInProgress = errors.New("an upload is already being parsed")
	ErrTooManyRows      = errors.New("row limit exceeded")
)

// IngestError reports a fatal failure reading a log. Line is the 1-based
// source line when known.
type IngestError struct {
	Source string
	Line   int
	Err    error
}

func (e *IngestError) Error() string {
	src := e.Source
	if src == "" {
		src = "input"
	}
	if e.Line > 0 {
		return fmt.Sprintf("parsing %s at line %d: %v", src, e.Line, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", src, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// ParseOptions configures ParseRows and ParseWorkbook.
type ParseOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// Strict disables lazy quote handling, so a bare quote inside an
	// unquoted field is a fatal error.
	Strict bool

	// Source names the input in errors and warnings.
	Source string

	// WarningHandler is called with non-fatal warnings (e.g. duplicate
	// headers). If nil, warnings are printed to os.Stderr unless EV_ROBOT=1.
	WarningHandler func(string)

	// RowFilter optionally filters parsed rows. Return true to include.
	RowFilter func(*model.Row) bool

	// MaxRows caps the number of kept rows. Zero means unlimited.
	MaxRows int
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("EV_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// ParseRows parses a delimited log from r.
func ParseRows(r io.Reader, opts ParseOptions) ([]model.Row, error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		metrics.CSVParse.Record(d)
		debug.LogTiming("ParseRows "+opts.Source, d)
	}()

	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = !opts.Strict
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return []model.Row{}, nil
	}
	if err != nil {
		return nil, wrapCSVError(opts.Source, err)
	}
	headers := normalizeHeaders(header, opts.warn())

	b := newRowBuilder(headers, opts)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(opts.Source, err)
		}
		line, _ := cr.FieldPos(0)
		if err := b.add(rec, line); err != nil {
			return nil, err
		}
	}
	return b.rows, nil
}

func wrapCSVError(source string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &IngestError{Source: source, Line: pe.Line, Err: pe.Err}
	}
	return &IngestError{Source: source, Err: err}
}

// normalizeHeaders trims header names, names blank ones Column_N and
// strips a leading UTF-8 BOM.
func normalizeHeaders(raw []string, warn func(string)) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = string(stripBOM([]byte(h)))
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		if first, dup := seen[h]; dup {
			warn(fmt.Sprintf("duplicate header %q in columns %d and %d; the later column wins", h, first+1, i+1))
		} else {
			seen[h] = i
		}
		headers[i] = h
	}
	return headers
}

// rowBuilder applies the shared inference, blank-row and limit rules.
type rowBuilder struct {
	headers []string
	opts    ParseOptions
	rows    []model.Row
}

func newRowBuilder(headers []string, opts ParseOptions) *rowBuilder {
	return &rowBuilder{headers: headers, opts: opts, rows: []model.Row{}}
}

func (b *rowBuilder) add(rec []string, line int) error {
	row := model.Row{Line: line}
	for i, h := range b.headers {
		c := model.Empty()
		if i < len(rec) {
			c = model.InferCell(rec[i])
		}
		row.Set(h, c)
	}
	if row.IsBlank() {
		return nil
	}
	if b.opts.RowFilter != nil && !b.opts.RowFilter(&row) {
		return nil
	}
	if b.opts.MaxRows > 0 && len(b.rows) >= b.opts.MaxRows {
		return &IngestError{Source: b.opts.Source, Line: line, Err: fmt.Errorf("%w: more than %d rows", ErrTooManyRows, b.opts.MaxRows)}
	}
	b.rows = append(b.rows, row)
	return nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

// Format is a supported log file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatForName picks a format from a file name's extension, defaulting
// to CSV.
func FormatForName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tsv", ".tab":
		return FormatTSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Parse dispatches to the parser for format.
func Parse(r io.Reader, format Format, opts ParseOptions) ([]model.Row, error) {
	switch format {
	case FormatXLSX:
		return ParseWorkbook(r, opts)
	case FormatTSV:
		if opts.Comma == 0 {
			opts.Comma = '\t'
		}
		return ParseRows(r, opts)
	default:
		return ParseRows(r, opts)
	}
}

// LoadRowsFromFile reads a log file, choosing the parser by extension.
func LoadRowsFromFile(path string) ([]model.Row, error) {
	return LoadRowsFromFileWithOptions(path, ParseOptions{})
}

// LoadRowsFromFileWithOptions is LoadRowsFromFile with custom options.
func LoadRowsFromFileWithOptions(path string, opts ParseOptions) ([]model.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no experiment log found at %s", path)
		}
		return nil, fmt.Errorf("failed to open experiment log: %w", err)
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = filepath.Base(path)
	}
	return Parse(f, FormatForName(path), opts)
}
