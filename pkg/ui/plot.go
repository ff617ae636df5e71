package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/expview/pkg/model"
)

const (
	plotPoint = '●'
	plotLine  = '·'
	noDataMsg = "No data for the current selection"
)

type plotCell struct {
	r     rune
	color string
}

// RenderPlot draws chart data as a terminal line plot of exactly height
// lines. Labels sit evenly spaced on the x axis; point i of every dataset
// is drawn above label i. Null values break the line.
func RenderPlot(data model.ChartData, width, height int, theme Theme) string {
	if width < 10 || height < 4 {
		return ""
	}
	lo, hi, ok := data.ValueRange()
	if data.IsEmpty() || !ok || len(data.Labels) == 0 {
		return placeholder(width, height, theme)
	}
	if lo == hi {
		pad := math.Abs(lo) * 0.1
		if pad == 0 {
			pad = 1
		}
		lo, hi = lo-pad, hi+pad
	}

	yLabels := []string{formatAxis(hi), formatAxis((lo + hi) / 2), formatAxis(lo)}
	yw := 0
	for _, l := range yLabels {
		yw = max(yw, runewidth.StringWidth(l))
	}
	plotW := width - yw - 1
	plotH := height - 2
	if plotW < 2 || plotH < 2 {
		return placeholder(width, height, theme)
	}

	grid := make([][]plotCell, plotH)
	for i := range grid {
		grid[i] = make([]plotCell, plotW)
		for j := range grid[i] {
			grid[i][j] = plotCell{r: ' '}
		}
	}

	n := len(data.Labels)
	col := func(i int) int {
		if n == 1 {
			return plotW / 2
		}
		return int(math.Round(float64(i) * float64(plotW-1) / float64(n-1)))
	}
	row := func(v float64) int {
		r := int(math.Round((hi - v) / (hi - lo) * float64(plotH-1)))
		return min(max(r, 0), plotH-1)
	}
	set := func(r, c int, ch rune, color string) {
		if r < 0 || r >= plotH || c < 0 || c >= plotW {
			return
		}
		if ch == plotLine && grid[r][c].r == plotPoint {
			return
		}
		grid[r][c] = plotCell{r: ch, color: color}
	}

	for _, ds := range data.Datasets {
		for i := 0; i < len(ds.Data) && i < n; i++ {
			v := ds.Data[i]
			if !v.Valid {
				continue
			}
			x0, y0 := col(i), row(v.V)
			if i+1 < len(ds.Data) && i+1 < n && ds.Data[i+1].Valid {
				x1, y1 := col(i+1), row(ds.Data[i+1].V)
				for x := x0 + 1; x < x1; x++ {
					t := float64(x-x0) / float64(x1-x0)
					set(int(math.Round(float64(y0)+t*float64(y1-y0))), x, plotLine, ds.BorderColor)
				}
			}
			set(y0, x0, plotPoint, ds.BorderColor)
		}
	}

	styles := make(map[string]lipgloss.Style)
	paint := func(c plotCell) string {
		if c.color == "" || c.r == ' ' {
			return string(c.r)
		}
		st, ok := styles[c.color]
		if !ok {
			st = theme.Renderer.NewStyle().Foreground(SeriesFg(c.color))
			styles[c.color] = st
		}
		return st.Render(string(c.r))
	}

	var sb strings.Builder
	for r := 0; r < plotH; r++ {
		label := ""
		switch r {
		case 0:
			label = yLabels[0]
		case plotH / 2:
			label = yLabels[1]
		case plotH - 1:
			label = yLabels[2]
		}
		sb.WriteString(theme.AxisText.Render(padLeft(label, yw)))
		if label != "" {
			sb.WriteString(theme.AxisText.Render("┤"))
		} else {
			sb.WriteString(theme.AxisText.Render("│"))
		}
		for c := 0; c < plotW; c++ {
			sb.WriteString(paint(grid[r][c]))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(theme.AxisText.Render(strings.Repeat(" ", yw) + "└" + strings.Repeat("─", plotW)))
	sb.WriteByte('\n')
	sb.WriteString(theme.AxisText.Render(strings.Repeat(" ", yw+1) + xAxisLabels(data.Labels, plotW)))
	return sb.String()
}

// xAxisLabels places the first, last and (room permitting) middle step
// labels under their columns.
func xAxisLabels(labels []float64, width int) string {
	line := []rune(strings.Repeat(" ", width))
	place := func(i int, align int) {
		s := []rune(formatAxis(labels[i]))
		var start int
		if len(labels) == 1 {
			start = width/2 - len(s)/2
		} else {
			start = int(math.Round(float64(i)*float64(width-1)/float64(len(labels)-1))) - align*(len(s)-1)/2
		}
		start = min(max(start, 0), width-len(s))
		if start < 0 {
			return
		}
		for j := range s {
			if line[start+j] != ' ' {
				return
			}
		}
		copy(line[start:], s)
	}
	place(0, 0)
	if len(labels) > 1 {
		place(len(labels)-1, 2)
	}
	if len(labels) > 2 {
		place(len(labels)/2, 1)
	}
	return strings.TrimRight(string(line), " ")
}

func placeholder(width, height int, theme Theme) string {
	lines := make([]string, height)
	msg := truncate(noDataMsg, width)
	lines[height/2] = theme.MutedText.Render(strings.Repeat(" ", max((width-runewidth.StringWidth(msg))/2, 0)) + msg)
	return strings.Join(lines, "\n")
}
