package export

import (
	"database/sql"
	"fmt"
)

// Schema version for tracking migrations
const SchemaVersion = 1

// CreateSchema creates all tables and indexes in the database.
func CreateSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	return nil
}

// createCoreTables creates the rows, experiments and series_points tables.
func createCoreTables(db *sql.DB) error {
	// Cell columns are declared without a type so each value keeps its own
	// storage class: NULL for empty, REAL for numbers, TEXT for text.
	rowsSQL := `
		CREATE TABLE IF NOT EXISTS "rows" (
			id INTEGER PRIMARY KEY,
			line INTEGER,
			experiment_id,
			model_type,
			learning_rate,
			metric_name,
			step,
			value,
			extra TEXT
		)
	`
	if _, err := db.Exec(rowsSQL); err != nil {
		return fmt.Errorf("create rows table: %w", err)
	}

	experimentsSQL := `
		CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			model_type TEXT,
			learning_rate,
			color TEXT,
			row_count INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := db.Exec(experimentsSQL); err != nil {
		return fmt.Errorf("create experiments table: %w", err)
	}

	// One point per row with a numeric step; value is NULL when the row's
	// value is not a number.
	pointsSQL := `
		CREATE TABLE IF NOT EXISTS series_points (
			experiment_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			step REAL NOT NULL,
			value REAL
		)
	`
	if _, err := db.Exec(pointsSQL); err != nil {
		return fmt.Errorf("create series_points table: %w", err)
	}

	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_rows_experiment ON "rows"(experiment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rows_metric ON "rows"(metric_name)`,
		`CREATE INDEX IF NOT EXISTS idx_points_series ON series_points(experiment_id, metric, step)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// createMetaTable creates the export metadata table.
func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	return nil
}

// OptimizeDatabase compacts the file. Call it as the final step before
// closing the database.
func OptimizeDatabase(db *sql.DB, pageSize int) error {
	if pageSize <= 0 {
		pageSize = 4096
	}

	optimizations := []string{
		`PRAGMA journal_mode=DELETE`,
		fmt.Sprintf(`PRAGMA page_size=%d`, pageSize),
		`ANALYZE`,
		`PRAGMA optimize`,
	}

	for _, stmt := range optimizations {
		if _, err := db.Exec(stmt); err != nil {
			// Some pragmas may fail depending on state, continue
			continue
		}
	}

	// VACUUM must be last and outside transaction
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	return nil
}

// InsertMetaValue inserts or updates a metadata key-value pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}
