package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/model"
)

// SQLiteReader provides read access to an expview SQLite export
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens an export for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s: %v", pragma, err)
		}
	}

	r := &SQLiteReader{db: db, path: source.Path}
	if err := r.validate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// validate checks that the database carries the export's rows table.
func (r *SQLiteReader) validate() error {
	var name string
	err := r.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'rows'`).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s: not an expview export: %w", r.path, ErrUnsupportedFormat)
	}
	if err != nil {
		return fmt.Errorf("inspect %s: %w", r.path, err)
	}
	return nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadRows reads every exported row in its original order.
func (r *SQLiteReader) LoadRows(ctx context.Context) ([]model.Row, error) {
	query := `
		SELECT line, experiment_id, model_type, learning_rate,
		       metric_name, step, value, extra
		FROM "rows"
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []model.Row{}
	for rows.Next() {
		var (
			line   sql.NullInt64
			fields [6]any
			extra  sql.NullString
		)
		if err := rows.Scan(&line, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5], &extra); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var row model.Row
		for i, col := range model.Columns {
			row.Set(col, cellFromSQL(fields[i]))
		}
		if line.Valid {
			row.Line = int(line.Int64)
		}
		if extra.Valid && extra.String != "" {
			var m map[string]model.Cell
			if err := json.Unmarshal([]byte(extra.String), &m); err != nil {
				return nil, fmt.Errorf("decode extra columns at line %d: %w", row.Line, err)
			}
			for k, c := range m {
				row.Set(k, c)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Meta returns the key/value pairs of the export's meta table. A database
// without one yields an empty map.
func (r *SQLiteReader) Meta(ctx context.Context) (map[string]string, error) {
	meta := make(map[string]string)
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return meta, nil
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// cellFromSQL maps a dynamically typed column back onto a cell. Exports
// store Empty as NULL, numbers as REAL and text as TEXT.
func cellFromSQL(v any) model.Cell {
	switch t := v.(type) {
	case nil:
		return model.Empty()
	case float64:
		return model.Number(t)
	case int64:
		return model.Number(float64(t))
	case string:
		return model.Text(t)
	case []byte:
		return model.Text(string(t))
	default:
		return model.Text(fmt.Sprint(t))
	}
}
