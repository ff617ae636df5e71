//go:build ignore

// generate_testdata.go creates sample experiment logs for benchmarking and
// manual testing.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/logs/small.csv      (5 experiments, 50 steps)
//	testdata/logs/medium.csv     (20 experiments, 500 steps)
//	testdata/logs/large.csv      (50 experiments, 2000 steps)
//	testdata/logs/staggered.tsv  (steps logged at different strides, with gaps)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/expview/pkg/testutil"
)

type datasetSpec struct {
	name  string
	comma rune
	cfg   testutil.GeneratorConfig
}

var datasets = []datasetSpec{
	{"small.csv", ',', testutil.GeneratorConfig{Experiments: 5, Steps: 50}},
	{"medium.csv", ',', testutil.GeneratorConfig{Experiments: 20, Steps: 500, Metrics: []string{"loss", "accuracy", "val_loss"}}},
	{"large.csv", ',', testutil.GeneratorConfig{Experiments: 50, Steps: 2000, Metrics: []string{"loss", "accuracy", "val_loss", "lr"}, Shuffle: true}},
	{"staggered.tsv", '\t', testutil.GeneratorConfig{Experiments: 8, Steps: 100, StepStride: 10, SkipRate: 0.15}},
}

func main() {
	outputDir := filepath.Join("testdata", "logs")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for i, ds := range datasets {
		ds.cfg.Seed = int64(i + 1) // Reproducible per dataset
		rows := testutil.New(ds.cfg).Rows()
		content := testutil.ToDelimited(rows, ds.comma)

		outputPath := filepath.Join(outputDir, ds.name)
		if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d rows, %d bytes)\n", outputPath, len(rows), len(content))
	}

	fmt.Println("\nDone! Sample logs created in", outputDir)
}
