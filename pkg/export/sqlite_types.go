package export

import "time"

// ExportMeta contains metadata about the export, stored as key/value pairs
// in the meta table.
type ExportMeta struct {
	Version         string    `json:"version"`
	GeneratedAt     time.Time `json:"generated_at"`
	Source          string    `json:"source,omitempty"`
	RowCount        int       `json:"row_count"`
	ExperimentCount int       `json:"experiment_count"`
	DataHash        string    `json:"data_hash,omitempty"`
	Title           string    `json:"title,omitempty"`
}

// SQLiteExportConfig configures the SQLite export process.
type SQLiteExportConfig struct {
	// Title is recorded in the meta table
	Title string

	// Source names the log the rows came from
	Source string

	// PageSize is the SQLite page size
	PageSize int

	// Optimize runs ANALYZE and VACUUM after writing
	Optimize bool
}

// DefaultSQLiteExportConfig returns sensible defaults for export configuration.
func DefaultSQLiteExportConfig() SQLiteExportConfig {
	return SQLiteExportConfig{
		PageSize: 4096,
		Optimize: true,
	}
}
