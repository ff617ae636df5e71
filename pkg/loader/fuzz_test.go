package loader_test

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

// =============================================================================
// Fuzz Tests for CSV Parser Robustness
// =============================================================================
//
// Run with: go test -fuzz=FuzzParseRows -fuzztime=10m ./pkg/loader/...

// FuzzParseRows checks that parsing never panics and never keeps a blank row.
func FuzzParseRows(f *testing.F) {
	seeds := []string{
		testutil.QuickCSV(2, 3),
		"",
		"experiment_id\n",
		"\xef\xbb\xbfexperiment_id,value\nexp_1,1\n",
		",,,\n,,,\n",
		"experiment_id,value\nexp_\"1,2\n",
		"experiment_id,value\n\"unterminated,1\n",
		"a,b\n1\n1,2,3,4\n",
		"experiment_id,step,value\nexp_1,1e309,-0\n",
		"experiment_id,value\r\nexp_1,1\r\n",
		"experiment_id;value\nexp_1;1\n",
		"日本語,値\n実験_1,0.5\n",
		strings.Repeat("x,", 1000) + "\n",
	}
	for _, s := range seeds {
		f.Add(s, false)
		f.Add(s, true)
	}

	f.Fuzz(func(t *testing.T, input string, strict bool) {
		opts := loader.ParseOptions{Strict: strict, WarningHandler: func(string) {}}
		rows, err := loader.ParseRows(strings.NewReader(input), opts)
		if err != nil {
			if rows != nil {
				t.Fatalf("error with partial rows: %v", err)
			}
			return
		}
		for _, r := range rows {
			if r.IsBlank() {
				t.Fatalf("blank row kept at line %d", r.Line)
			}
		}
	})
}

// FuzzFormatForName checks that every name maps to a known format.
func FuzzFormatForName(f *testing.F) {
	for _, s := range []string{"a.csv", "a.tsv", "a.xlsx", "", ".", "a.CSV.xlsx", "noext"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, name string) {
		switch loader.FormatForName(name) {
		case loader.FormatCSV, loader.FormatTSV, loader.FormatXLSX:
		default:
			t.Fatalf("unknown format for %q", name)
		}
	})
}
