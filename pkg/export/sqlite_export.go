// Package export renders experiment data to files: line charts as SVG, PNG
// or JSON, markdown summaries, and SQLite databases that ev can load back.
package export

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/version"
)

// SQLiteExporter writes parsed rows, their experiments and the numeric
// series they contain to a single SQLite file.
type SQLiteExporter struct {
	Rows   []model.Row
	Colors *aggregate.ColorAssigner
	Config SQLiteExportConfig
}

// NewSQLiteExporter creates an exporter for rows. colors may be nil, in
// which case a fresh assigner over the default palette is used.
func NewSQLiteExporter(rows []model.Row, colors *aggregate.ColorAssigner) *SQLiteExporter {
	if colors == nil {
		colors = aggregate.NewColorAssigner()
	}
	return &SQLiteExporter{
		Rows:   rows,
		Colors: colors,
		Config: DefaultSQLiteExportConfig(),
	}
}

// Export writes the database to path, replacing any existing file.
func (e *SQLiteExporter) Export(path string) error {
	if len(e.Rows) == 0 {
		return ErrNoData
	}
	start := time.Now()
	defer func() { metrics.SQLiteExport.Record(time.Since(start)) }()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	summary := aggregate.Aggregate(e.Rows, e.Colors)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.insertRows(tx); err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}
	if err := e.insertExperiments(tx, summary); err != nil {
		return fmt.Errorf("insert experiments: %w", err)
	}
	if err := e.insertSeriesPoints(tx); err != nil {
		return fmt.Errorf("insert series points: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := e.insertMeta(db, summary); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if e.Config.Optimize {
		if err := OptimizeDatabase(db, e.Config.PageSize); err != nil {
			return fmt.Errorf("optimize database: %w", err)
		}
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true
	return nil
}

func (e *SQLiteExporter) insertRows(tx *sql.Tx) error {
	stmt, err := tx.Prepare(`
		INSERT INTO "rows" (line, experiment_id, model_type, learning_rate, metric_name, step, value, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range e.Rows {
		var extra any
		if len(r.Extra) > 0 {
			b, err := json.Marshal(r.Extra)
			if err != nil {
				return fmt.Errorf("encode extra columns at line %d: %w", r.Line, err)
			}
			extra = string(b)
		}
		var line any
		if r.Line > 0 {
			line = r.Line
		}
		if _, err := stmt.Exec(line,
			sqlValue(r.ExperimentID), sqlValue(r.ModelType), sqlValue(r.LearningRate),
			sqlValue(r.MetricName), sqlValue(r.Step), sqlValue(r.Value), extra,
		); err != nil {
			return err
		}
	}
	return nil
}

func (e *SQLiteExporter) insertExperiments(tx *sql.Tx, summary aggregate.Summary) error {
	counts := make(map[string]int, len(summary.Experiments))
	for _, r := range e.Rows {
		counts[r.Experiment()]++
	}

	stmt, err := tx.Prepare(`
		INSERT INTO experiments (id, position, model_type, learning_rate, color, row_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, exp := range summary.Experiments {
		if _, err := stmt.Exec(exp.ID, i, exp.ModelType, sqlValue(exp.LearningRate),
			e.Colors.Color(exp.ID), counts[exp.ID]); err != nil {
			return err
		}
	}
	return nil
}

func (e *SQLiteExporter) insertSeriesPoints(tx *sql.Tx) error {
	stmt, err := tx.Prepare(`
		INSERT INTO series_points (experiment_id, metric, step, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range e.Rows {
		step, ok := r.Step.Float()
		if !ok {
			continue
		}
		var value any
		if v, ok := r.Value.Float(); ok {
			value = v
		}
		if _, err := stmt.Exec(r.Experiment(), r.Metric(), step, value); err != nil {
			return err
		}
	}
	return nil
}

func (e *SQLiteExporter) insertMeta(db *sql.DB, summary aggregate.Summary) error {
	m := e.Meta(summary)
	meta := map[string]string{
		"version":          m.Version,
		"generated_at":     m.GeneratedAt.Format(time.RFC3339),
		"row_count":        strconv.Itoa(m.RowCount),
		"experiment_count": strconv.Itoa(m.ExperimentCount),
		"data_hash":        m.DataHash,
		"schema_version":   strconv.Itoa(SchemaVersion),
	}
	if m.Source != "" {
		meta["source"] = m.Source
	}
	if m.Title != "" {
		meta["title"] = m.Title
	}

	for key, value := range meta {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}

// Meta describes the export of summary's rows.
func (e *SQLiteExporter) Meta(summary aggregate.Summary) ExportMeta {
	return ExportMeta{
		Version:         version.Version,
		GeneratedAt:     time.Now().UTC(),
		Source:          e.Config.Source,
		RowCount:        len(e.Rows),
		ExperimentCount: len(summary.Experiments),
		DataHash:        dataHash(e.Rows),
		Title:           e.Config.Title,
	}
}

// dataHash fingerprints the canonical columns of rows.
func dataHash(rows []model.Row) string {
	h := sha256.New()
	for _, r := range rows {
		for _, col := range model.Columns {
			c := r.Get(col)
			h.Write([]byte{byte(c.Kind)})
			h.Write([]byte(c.String()))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// sqlValue maps a cell onto a driver value with a matching storage class.
func sqlValue(c model.Cell) any {
	switch c.Kind {
	case model.CellNumber:
		return c.Num
	case model.CellText:
		return c.Text
	default:
		return nil
	}
}
