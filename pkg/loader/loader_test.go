package loader_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

func quiet() loader.ParseOptions {
	return loader.ParseOptions{WarningHandler: func(string) {}}
}

// =============================================================================
// ParseRows Tests
// =============================================================================

func TestParseRows_Basic(t *testing.T) {
	input := `experiment_id,model_type,learning_rate,metric_name,step,value
exp_1,cnn,0.01,loss,1,0.9
exp_1,cnn,0.01,loss,2,0.7
`
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	testutil.AssertRowCount(t, rows, 2)

	r := rows[0]
	if r.Experiment() != "exp_1" || r.ModelType.String() != "cnn" || r.Metric() != "loss" {
		t.Errorf("unexpected text fields: %+v", r)
	}
	if v, ok := r.LearningRate.Float(); !ok || v != 0.01 {
		t.Errorf("expected learning rate 0.01, got %v (%v)", v, r.LearningRate.Kind)
	}
	if v, ok := rows[1].Step.Float(); !ok || v != 2 {
		t.Errorf("expected step 2, got %v", rows[1].Step)
	}
	if r.Line != 2 || rows[1].Line != 3 {
		t.Errorf("expected lines 2 and 3, got %d and %d", r.Line, rows[1].Line)
	}
}

func TestParseRows_NumericLookingIDsBecomeNumbers(t *testing.T) {
	input := "experiment_id,metric_name,step,value\n42,loss,1,0.5\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if !rows[0].ExperimentID.IsNumber() {
		t.Errorf("expected numeric id cell, got %v", rows[0].ExperimentID.Kind)
	}
	if rows[0].Experiment() != "42" {
		t.Errorf("expected id key 42, got %q", rows[0].Experiment())
	}
}

func TestParseRows_DropsBlankRows(t *testing.T) {
	input := `experiment_id,model_type,learning_rate,metric_name,step,value
exp_1,cnn,0.01,loss,1,0.9
,,,,,
  ,	, , , ,
exp_2,,,,,
`
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 2)
	testutil.AssertNoBlankRows(t, rows)
	if rows[1].Experiment() != "exp_2" || !rows[1].Value.IsEmpty() {
		t.Errorf("expected partially empty exp_2 row kept, got %+v", rows[1])
	}
}

func TestParseRows_ShortAndLongRecords(t *testing.T) {
	input := "experiment_id,metric_name,step,value\nexp_1,loss\nexp_2,loss,1,0.5,surplus\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 2)
	if !rows[0].Step.IsEmpty() || !rows[0].Value.IsEmpty() {
		t.Errorf("expected missing fields to be empty, got %+v", rows[0])
	}
	if v, _ := rows[1].Value.Float(); v != 0.5 {
		t.Errorf("expected value 0.5, got %v", rows[1].Value)
	}
}

func TestParseRows_TextValuesSurvive(t *testing.T) {
	input := "experiment_id,metric_name,step,value\nexp_1,loss,1,NaN\nexp_1,loss,2,n/a\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Value.Kind != model.CellText {
			t.Errorf("line %d: expected text value, got %v", r.Line, r.Value.Kind)
		}
	}
}

func TestParseRows_StripsBOM(t *testing.T) {
	input := "\xef\xbb\xbfexperiment_id,value\nexp_1,1\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Experiment() != "exp_1" {
		t.Errorf("BOM should not leak into the first header, got id %q extras %v", rows[0].Experiment(), rows[0].Extra)
	}
}

func TestParseRows_HeaderFallbackAndExtras(t *testing.T) {
	input := " experiment_id , ,seed\nexp_1,x,7\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatal(err)
	}
	r := rows[0]
	if r.Experiment() != "exp_1" {
		t.Errorf("expected trimmed header to map to experiment_id, got %q", r.Experiment())
	}
	if got := r.Get("Column_2").String(); got != "x" {
		t.Errorf("expected Column_2 extra, got %q", got)
	}
	if v, _ := r.Get("seed").Float(); v != 7 {
		t.Errorf("expected seed extra 7, got %v", r.Get("seed"))
	}
}

func TestParseRows_DuplicateHeaderWarns(t *testing.T) {
	var warnings []string
	opts := loader.ParseOptions{WarningHandler: func(msg string) { warnings = append(warnings, msg) }}
	input := "experiment_id,value,value\nexp_1,1,2\n"
	rows, err := loader.ParseRows(strings.NewReader(input), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "duplicate header") {
		t.Errorf("expected one duplicate header warning, got %v", warnings)
	}
	if v, _ := rows[0].Value.Float(); v != 2 {
		t.Errorf("expected later column to win, got %v", rows[0].Value)
	}
}

func TestParseRows_NoHeader(t *testing.T) {
	for _, input := range []string{"", "\n\n", "\xef\xbb\xbf"} {
		rows, err := loader.ParseRows(strings.NewReader(input), quiet())
		if err != nil {
			t.Errorf("input %q: unexpected error %v", input, err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("input %q: expected empty non-nil rows, got %v", input, rows)
		}
	}
}

func TestParseRows_HeaderOnly(t *testing.T) {
	rows, err := loader.ParseRows(strings.NewReader("experiment_id,value\n"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 0)
}

func TestParseRows_LazyQuotesByDefault(t *testing.T) {
	input := "experiment_id,value\nexp_\"1,3\n"
	rows, err := loader.ParseRows(strings.NewReader(input), quiet())
	if err != nil {
		t.Fatalf("expected lazy quotes to accept a bare quote, got %v", err)
	}
	if rows[0].Experiment() != `exp_"1` {
		t.Errorf("unexpected id %q", rows[0].Experiment())
	}
}

func TestParseRows_StrictBareQuoteIsIngestError(t *testing.T) {
	opts := quiet()
	opts.Strict = true
	opts.Source = "runs.csv"
	input := "experiment_id,value\nexp_1,1\nexp_\"2,3\n"

	rows, err := loader.ParseRows(strings.NewReader(input), opts)
	if err == nil {
		t.Fatal("expected error for bare quote in strict mode")
	}
	if rows != nil {
		t.Errorf("expected no partial rows, got %d", len(rows))
	}
	var ie *loader.IngestError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IngestError, got %T", err)
	}
	if ie.Line != 3 || ie.Source != "runs.csv" {
		t.Errorf("expected runs.csv line 3, got %s line %d", ie.Source, ie.Line)
	}
	if !strings.Contains(err.Error(), "runs.csv") {
		t.Errorf("error should name the source: %v", err)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestParseRows_ReaderFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := loader.ParseRows(io.MultiReader(strings.NewReader("experiment_id\nexp_1\n"), failingReader{boom}), quiet())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped reader error, got %v", err)
	}
	var ie *loader.IngestError
	if !errors.As(err, &ie) {
		t.Errorf("expected *IngestError, got %T", err)
	}
}

func TestParseRows_MaxRows(t *testing.T) {
	opts := quiet()
	opts.MaxRows = 5
	_, err := loader.ParseRows(strings.NewReader(testutil.QuickCSV(1, 10)), opts)
	if !errors.Is(err, loader.ErrTooManyRows) {
		t.Fatalf("expected ErrTooManyRows, got %v", err)
	}

	opts.MaxRows = 40
	rows, err := loader.ParseRows(strings.NewReader(testutil.QuickCSV(1, 10)), opts)
	if err != nil {
		t.Fatalf("unexpected error under the limit: %v", err)
	}
	testutil.AssertRowCount(t, rows, 20)
}

func TestParseRows_RowFilter(t *testing.T) {
	opts := quiet()
	opts.RowFilter = func(r *model.Row) bool { return r.Metric() == "loss" }
	rows, err := loader.ParseRows(strings.NewReader(testutil.QuickCSV(2, 5)), opts)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 10)
	for _, r := range rows {
		if r.Metric() != "loss" {
			t.Errorf("filter leaked metric %q", r.Metric())
		}
	}
}

func TestParseRows_RoundTripsGeneratedLog(t *testing.T) {
	want := testutil.QuickLog(3, 8)
	got, err := loader.ParseRows(strings.NewReader(testutil.ToCSV(want)), quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, got, len(want))
	for i := range want {
		for _, col := range model.Columns {
			if !want[i].Get(col).Equal(got[i].Get(col)) {
				t.Fatalf("row %d column %s: want %v got %v", i, col, want[i].Get(col), got[i].Get(col))
			}
		}
	}
}

// =============================================================================
// Format dispatch and file loading
// =============================================================================

func TestFormatForName(t *testing.T) {
	tests := map[string]loader.Format{
		"runs.csv":  loader.FormatCSV,
		"runs.TSV":  loader.FormatTSV,
		"runs.tab":  loader.FormatTSV,
		"runs.xlsx": loader.FormatXLSX,
		"runs":      loader.FormatCSV,
		"runs.txt":  loader.FormatCSV,
	}
	for name, want := range tests {
		if got := loader.FormatForName(name); got != want {
			t.Errorf("FormatForName(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestParse_TSV(t *testing.T) {
	content := testutil.ToDelimited(testutil.Staggered(), '\t')
	rows, err := loader.Parse(strings.NewReader(content), loader.FormatTSV, quiet())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 4)
	if rows[3].Experiment() != "exp_2" {
		t.Errorf("unexpected id %q", rows[3].Experiment())
	}
}

func TestLoadRowsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteLogFile(t, dir, "runs.csv", testutil.Staggered())

	rows, err := loader.LoadRowsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 4)
}

func TestLoadRowsFromFile_Missing(t *testing.T) {
	_, err := loader.LoadRowsFromFile(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil || !strings.Contains(err.Error(), "no experiment log found") {
		t.Errorf("expected missing file error, got %v", err)
	}
}

func TestLoadFiles_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, id := range []string{"exp_3", "exp_1", "exp_2"} {
		rows := []model.Row{testutil.MakeRow(id, "cnn", 0.1, "loss", i, 1)}
		paths = append(paths, testutil.WriteLogFile(t, dir, id+".csv", rows))
	}

	rows, err := loader.LoadFiles(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertRowCount(t, rows, 3)
	for i, want := range []string{"exp_3", "exp_1", "exp_2"} {
		if rows[i].Experiment() != want {
			t.Errorf("row %d: expected %s, got %s", i, want, rows[i].Experiment())
		}
	}
}

func TestLoadFiles_Errors(t *testing.T) {
	if _, err := loader.LoadFiles(context.Background(), nil); !errors.Is(err, loader.ErrNoFile) {
		t.Errorf("expected ErrNoFile, got %v", err)
	}

	dir := t.TempDir()
	good := testutil.WriteLogFile(t, dir, "good.csv", testutil.Single())
	_, err := loader.LoadFiles(context.Background(), []string{good, filepath.Join(dir, "missing.csv")})
	if err == nil || !strings.Contains(err.Error(), "missing.csv") {
		t.Errorf("expected error naming missing.csv, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loader.LoadFiles(ctx, []string{good}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
