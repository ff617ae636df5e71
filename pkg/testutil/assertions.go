package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/expview/pkg/model"
)

// AssertRowCount checks the number of rows.
func AssertRowCount(t *testing.T, rows []model.Row, expected int) {
	t.Helper()
	if len(rows) != expected {
		t.Errorf("expected %d rows, got %d", expected, len(rows))
	}
}

// AssertNoBlankRows fails if any row has only empty fields.
func AssertNoBlankRows(t *testing.T, rows []model.Row) {
	t.Helper()
	for i, r := range rows {
		if r.IsBlank() {
			t.Errorf("row %d (line %d) is blank", i, r.Line)
		}
	}
}

// AssertExperimentIDs checks experiment ids and their order.
func AssertExperimentIDs(t *testing.T, exps []model.Experiment, expected ...string) {
	t.Helper()
	got := GetIDs(exps)
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("expected experiments %v, got %v", expected, got)
	}
}

// AssertDatasetLabels checks chart dataset labels and their order.
func AssertDatasetLabels(t *testing.T, data model.ChartData, expected ...string) {
	t.Helper()
	got := make([]string, len(data.Datasets))
	for i, ds := range data.Datasets {
		got[i] = ds.Label
	}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Errorf("expected datasets %q, got %q", expected, got)
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
// Useful for comparing structs that may have different Go representations
// but equivalent JSON forms.
func AssertJSONEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// Golden file helpers

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()
	if g.update {
		if err := os.MkdirAll(g.dir, 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) == actual {
		return
	}
	expectedLines := strings.Split(string(expected), "\n")
	actualLines := strings.Split(actual, "\n")
	for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}
		if expLine != actLine {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
			return
		}
	}
	g.t.Errorf("golden file mismatch (length differs)")
}

// WriteLogFile writes rows as CSV to dir/name and returns the path.
func WriteLogFile(t testing.TB, dir, name string, rows []model.Row) string {
	t.Helper()
	return WriteRawFile(t, dir, name, ToCSV(rows))
}

// WriteRawFile writes content to dir/name and returns the path.
func WriteRawFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write log file: %v", err)
	}
	return path
}

// FindExperiment returns the experiment with the given id, or nil.
func FindExperiment(exps []model.Experiment, id string) *model.Experiment {
	for i := range exps {
		if exps[i].ID == id {
			return &exps[i]
		}
	}
	return nil
}

// CountByExperiment returns a map of experiment id -> row count.
func CountByExperiment(rows []model.Row) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Experiment()]++
	}
	return counts
}

// GetIDs returns a slice of experiment ids.
func GetIDs(exps []model.Experiment) []string {
	ids := make([]string, len(exps))
	for i, e := range exps {
		ids[i] = e.ID
	}
	return ids
}

// Experiments builds experiments with only ids set, for selections.
func Experiments(ids ...string) []model.Experiment {
	out := make([]model.Experiment, len(ids))
	for i, id := range ids {
		out[i] = model.Experiment{ID: id}
	}
	return out
}
