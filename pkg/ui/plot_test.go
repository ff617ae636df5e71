package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/expview/pkg/model"
)

func lineChart(values ...model.Value) model.ChartData {
	labels := make([]float64, len(values))
	for i := range labels {
		labels[i] = float64(i + 1)
	}
	return model.ChartData{
		Labels: labels,
		Datasets: []model.Dataset{
			{Label: "exp_1 - loss", Data: values, BorderColor: "#FF6384"},
		},
	}
}

func TestRenderPlot_Placeholder(t *testing.T) {
	out := RenderPlot(model.EmptyChart(), 40, 10, TestTheme())
	if !strings.Contains(out, "No data") {
		t.Errorf("expected placeholder, got:\n%s", out)
	}
	if got := strings.Count(out, "\n") + 1; got != 10 {
		t.Errorf("expected 10 lines, got %d", got)
	}
}

func TestRenderPlot_TooSmall(t *testing.T) {
	data := lineChart(model.Float(1), model.Float(2))
	if out := RenderPlot(data, 5, 10, TestTheme()); out != "" {
		t.Errorf("expected empty output for narrow plot, got %q", out)
	}
	if out := RenderPlot(data, 40, 3, TestTheme()); out != "" {
		t.Errorf("expected empty output for short plot, got %q", out)
	}
}

func TestRenderPlot_Points(t *testing.T) {
	out := RenderPlot(lineChart(model.Float(1), model.Float(2), model.Float(3)), 40, 12, TestTheme())

	if got := strings.Count(out, string(plotPoint)); got != 3 {
		t.Errorf("expected 3 points, got %d:\n%s", got, out)
	}
	if !strings.ContainsRune(out, plotLine) {
		t.Errorf("expected connecting line:\n%s", out)
	}
	if got := strings.Count(out, "\n") + 1; got != 12 {
		t.Errorf("expected 12 lines, got %d", got)
	}

	lines := strings.Split(out, "\n")
	axis := lines[len(lines)-1]
	if !strings.Contains(axis, "1") || !strings.Contains(axis, "3") {
		t.Errorf("x axis should label first and last step, got %q", axis)
	}
	if !strings.HasPrefix(lines[0], "3") {
		t.Errorf("top y label should be the maximum, got %q", lines[0])
	}
}

func TestRenderPlot_NullBreaksLine(t *testing.T) {
	out := RenderPlot(lineChart(model.Float(1), model.Null(), model.Float(3)), 40, 12, TestTheme())

	if got := strings.Count(out, string(plotPoint)); got != 2 {
		t.Errorf("expected 2 points, got %d:\n%s", got, out)
	}
	if strings.ContainsRune(out, plotLine) {
		t.Errorf("null value should break the line:\n%s", out)
	}
}

func TestRenderPlot_FlatSeries(t *testing.T) {
	out := RenderPlot(lineChart(model.Float(0.5), model.Float(0.5)), 40, 8, TestTheme())
	if got := strings.Count(out, string(plotPoint)); got != 2 {
		t.Errorf("expected 2 points on a flat series, got %d:\n%s", got, out)
	}
}

func TestXAxisLabels_SingleStep(t *testing.T) {
	got := xAxisLabels([]float64{100}, 20)
	if strings.TrimSpace(got) != "100" {
		t.Errorf("expected centered label, got %q", got)
	}
	if !strings.HasPrefix(got, " ") {
		t.Errorf("single label should be centered, got %q", got)
	}
}
