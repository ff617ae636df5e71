// Package datasource detects which kind of experiment log a path holds and
// loads it into rows. Plain CSV/TSV text, Excel workbooks and SQLite exports
// written by expview are supported.
package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/expview/pkg/loader"
)

// SourceType identifies the format of a data source
type SourceType string

const (
	// SourceTypeCSV is comma separated text
	SourceTypeCSV SourceType = "csv"
	// SourceTypeTSV is tab separated text
	SourceTypeTSV SourceType = "tsv"
	// SourceTypeXLSX is an Excel workbook; the first sheet is read
	SourceTypeXLSX SourceType = "xlsx"
	// SourceTypeSQLite is a database written by the expview SQLite exporter
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = preferred when two sources
// were modified at the same time)
const (
	PrioritySQLite = 100
	PriorityXLSX   = 80
	PriorityCSV    = 50
)

// ErrUnsupportedFormat is returned when a path is not a log format expview
// can read.
var ErrUnsupportedFormat = errors.New("unsupported log format")

var (
	sqliteMagic = []byte("SQLite format 3\x00")
	zipMagic    = []byte("PK\x03\x04")
)

// sniffLen is how much of a file Detect reads to classify it.
const sniffLen = 512

// DataSource describes one detected log file
type DataSource struct {
	// Type is the detected format
	Type SourceType `json:"type"`
	// Path is the absolute path to the file
	Path string `json:"path"`
	// Priority breaks ModTime ties in SelectFreshest
	Priority int `json:"priority"`
	// ModTime is the last modification time of the file
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	return fmt.Sprintf("%s (%s, %d bytes, mod=%s)",
		s.Path, s.Type, s.Size, s.ModTime.Format(time.RFC3339))
}

// Format maps the source type onto the loader's parser selection. SQLite
// sources have no loader format and report ok=false.
func (s DataSource) Format() (loader.Format, bool) {
	switch s.Type {
	case SourceTypeCSV:
		return loader.FormatCSV, true
	case SourceTypeTSV:
		return loader.FormatTSV, true
	case SourceTypeXLSX:
		return loader.FormatXLSX, true
	default:
		return "", false
	}
}

// Detect classifies the file at path by its leading bytes, falling back to
// the extension for plain text.
func Detect(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, err
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s is a directory: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Open(abs)
	if err != nil {
		return DataSource{}, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return DataSource{}, fmt.Errorf("read %s: %w", path, err)
	}

	typ, err := sniff(head[:n], abs)
	if err != nil {
		return DataSource{}, fmt.Errorf("%s: %w", path, err)
	}

	return DataSource{
		Type:     typ,
		Path:     abs,
		Priority: priorityFor(typ),
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

func sniff(head []byte, name string) (SourceType, error) {
	switch {
	case bytes.HasPrefix(head, sqliteMagic):
		return SourceTypeSQLite, nil
	case bytes.HasPrefix(head, zipMagic):
		return SourceTypeXLSX, nil
	case bytes.IndexByte(head, 0) >= 0:
		return "", ErrUnsupportedFormat
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".log", "":
		return SourceTypeCSV, nil
	case ".tsv", ".tab":
		return SourceTypeTSV, nil
	case ".xlsx", ".xlsm", ".db", ".sqlite", ".sqlite3":
		// Right extension, wrong content.
		return "", ErrUnsupportedFormat
	}

	// Unknown extension: accept text whose first line looks delimited.
	first := head
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	switch {
	case len(head) == 0:
		return SourceTypeCSV, nil
	case bytes.IndexByte(first, '\t') >= 0 && bytes.IndexByte(first, ',') < 0:
		return SourceTypeTSV, nil
	case bytes.IndexByte(first, ',') >= 0:
		return SourceTypeCSV, nil
	}
	return "", ErrUnsupportedFormat
}

func priorityFor(t SourceType) int {
	switch t {
	case SourceTypeSQLite:
		return PrioritySQLite
	case SourceTypeXLSX:
		return PriorityXLSX
	default:
		return PriorityCSV
	}
}

// Discover lists the readable logs directly inside dir, freshest first.
// Files that are not logs are skipped silently.
func Discover(dir string) ([]DataSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		src, err := Detect(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		sources = append(sources, src)
	}
	sortFreshest(sources)
	return sources, nil
}

// SelectFreshest returns the most recently modified source, preferring the
// higher priority when modification times are equal.
func SelectFreshest(sources []DataSource) (DataSource, error) {
	if len(sources) == 0 {
		return DataSource{}, fmt.Errorf("no experiment logs found: %w", loader.ErrNoFile)
	}
	sorted := append([]DataSource(nil), sources...)
	sortFreshest(sorted)
	return sorted[0], nil
}

func sortFreshest(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if !sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].ModTime.After(sources[j].ModTime)
		}
		return sources[i].Priority > sources[j].Priority
	})
}
