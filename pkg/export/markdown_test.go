package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

func TestRenderMarkdown_Sections(t *testing.T) {
	rows := testutil.Staggered()
	colors := aggregate.NewColorAssigner()
	summary := aggregate.Aggregate(rows, colors)
	stats := aggregate.Stats(rows, "loss")
	data := chart.Build(rows, summary.Experiments, "loss", colors)

	md := RenderMarkdown(summary, stats, data)

	for _, want := range []string{
		"# Experiment Summary",
		"| **Experiments** | 2 |",
		"| **Default metric** | loss |",
		"## Experiments",
		"| exp_1 | cnn | 0.01 |",
		"| exp_2 | mlp | 0.001 |",
		"## `loss` statistics",
		"## Chart",
		"3 steps (1 to 3)",
		"| exp_1 - loss | 2 | 0 | `#42A5F5` |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_OmitsEmptySections(t *testing.T) {
	summary := aggregate.Aggregate(nil, nil)
	md := RenderMarkdown(summary, nil, model.EmptyChart())

	if !strings.Contains(md, "| **Experiments** | 0 |") {
		t.Errorf("expected zero experiment count:\n%s", md)
	}
	for _, absent := range []string{"## Experiments", "statistics", "## Chart"} {
		if strings.Contains(md, absent) {
			t.Errorf("markdown should not contain %q", absent)
		}
	}
}

func TestRenderMarkdown_EscapesPipes(t *testing.T) {
	rows := []model.Row{testutil.MakeRow("a|b", "cnn", 0.1, "loss", 1, 1)}
	md := RenderMarkdown(aggregate.Aggregate(rows, nil), nil, model.EmptyChart())
	if !strings.Contains(md, `a\|b`) {
		t.Errorf("pipe in id not escaped:\n%s", md)
	}
}

func TestSaveMarkdown(t *testing.T) {
	rows := testutil.Single()
	summary := aggregate.Aggregate(rows, nil)
	path := filepath.Join(t.TempDir(), "summary.md")

	if err := SaveMarkdown(path, summary, aggregate.Stats(rows, "loss"), model.EmptyChart()); err != nil {
		t.Fatalf("SaveMarkdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "exp_1") {
		t.Error("summary file missing experiment")
	}

	err = SaveMarkdown(path, aggregate.Aggregate(nil, nil), nil, model.EmptyChart())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for empty summary, got %v", err)
	}
}

func TestBarChart(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{-1, "░░░░"},
		{0, "░░░░"},
		{0.3, "█░░░"},
		{0.5, "██░░"},
		{0.8, "███░"},
		{1, "████"},
		{2, "████"},
	}
	for _, tt := range tests {
		if got := barChart(tt.in); got != tt.want {
			t.Errorf("barChart(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
