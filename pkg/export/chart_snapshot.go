package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no chart data to export")

// Default canvas size.
const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// ChartOptions controls chart export.
type ChartOptions struct {
	Path   string          // Output path; format inferred from extension when Format empty
	Format string          // "svg", "png" or "json" (case-insensitive)
	Title  string          // Optional title drawn above the plot
	Width  int             // Canvas width in pixels; DefaultWidth when zero
	Height int             // Canvas height in pixels; DefaultHeight when zero
	Data   model.ChartData // Chart to render
}

// ResolveFormat returns the output format for opts, inferring it from the
// path when Format is empty. A path without extension defaults to svg.
func ResolveFormat(opts ChartOptions) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(opts.Path), "."))
		if format == "" {
			format = "svg"
		}
	}
	switch format {
	case "svg", "png", "json":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want svg, png or json)", format)
	}
}

// SaveChart renders the chart to opts.Path.
func SaveChart(opts ChartOptions) error {
	if opts.Data.IsEmpty() {
		return ErrNoData
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := ResolveFormat(opts)
	if err != nil {
		return err
	}
	if filepath.Ext(opts.Path) == "" {
		opts.Path += "." + format
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := RenderChart(f, format, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderChart writes the chart in the given format to w. An empty chart
// renders as an empty plot.
func RenderChart(w io.Writer, format string, opts ChartOptions) error {
	start := time.Now()
	defer func() { metrics.ChartRender.Record(time.Since(start)) }()

	switch format {
	case "json":
		return WriteChartJSON(w, opts.Data)
	case "svg":
		return renderSVG(w, buildLayout(opts))
	case "png":
		return renderPNG(w, buildLayout(opts))
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type point struct{ X, Y float64 }

type tick struct {
	Pos   float64
	Label string
}

type layoutSeries struct {
	Label    string
	Color    color.RGBA
	Segments [][]point // broken at null values
}

type layoutResult struct {
	Width, Height  int
	Title          string
	Left, Top      float64
	Right, Bottom  float64
	XTicks, YTicks []tick
	Series         []layoutSeries
	Empty          bool
}

const (
	marginLeft   = 72.0
	marginRight  = 220.0
	marginTop    = 56.0
	marginBottom = 56.0
	maxXTicks    = 10
	yTickCount   = 5
)

// buildLayout maps the chart onto canvas coordinates. Labels are spaced
// evenly (a category axis) and dataset point i sits on label i.
func buildLayout(opts ChartOptions) layoutResult {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	l := layoutResult{
		Width:  width,
		Height: height,
		Title:  opts.Title,
		Left:   marginLeft,
		Top:    marginTop,
		Right:  float64(width) - marginRight,
		Bottom: float64(height) - marginBottom,
	}
	if l.Title == "" {
		l.Title = "Experiment metrics"
	}

	data := opts.Data
	lo, hi, ok := data.ValueRange()
	if !ok || len(data.Labels) == 0 {
		l.Empty = true
		return l
	}
	ticks := niceTicks(lo, hi, yTickCount)
	yMin, yMax := ticks[0], ticks[len(ticks)-1]

	n := len(data.Labels)
	xAt := func(i int) float64 {
		if n == 1 {
			return (l.Left + l.Right) / 2
		}
		return l.Left + float64(i)*(l.Right-l.Left)/float64(n-1)
	}
	yAt := func(v float64) float64 {
		if yMax == yMin {
			return (l.Top + l.Bottom) / 2
		}
		return l.Bottom - (v-yMin)/(yMax-yMin)*(l.Bottom-l.Top)
	}

	stride := (n + maxXTicks - 1) / maxXTicks
	for i := 0; i < n; i += stride {
		l.XTicks = append(l.XTicks, tick{Pos: xAt(i), Label: formatTick(data.Labels[i])})
	}
	for _, v := range ticks {
		l.YTicks = append(l.YTicks, tick{Pos: yAt(v), Label: formatTick(v)})
	}

	for _, ds := range data.Datasets {
		s := layoutSeries{Label: ds.Label, Color: parseHex(ds.BorderColor)}
		var seg []point
		for i, v := range ds.Data {
			if i >= n {
				break
			}
			if !v.Valid {
				if len(seg) > 0 {
					s.Segments = append(s.Segments, seg)
					seg = nil
				}
				continue
			}
			seg = append(seg, point{xAt(i), yAt(v.V)})
		}
		if len(seg) > 0 {
			s.Segments = append(s.Segments, seg)
		}
		l.Series = append(l.Series, s)
	}
	return l
}

// niceTicks returns about n evenly spaced round values covering [lo, hi].
func niceTicks(lo, hi float64, n int) []float64 {
	if lo == hi {
		pad := math.Abs(lo) * 0.1
		if pad == 0 {
			pad = 1
		}
		lo, hi = lo-pad, hi+pad
	}
	step := niceNum((hi-lo)/float64(n-1), true)
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step

	var out []float64
	for v := start; v <= end+step/2; v += step {
		// Snap to the step grid so accumulated error doesn't drift.
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

func niceNum(x float64, round bool) float64 {
	exp := math.Floor(math.Log10(x))
	f := x / math.Pow(10, exp)
	var nf float64
	switch {
	case round && f < 1.5, !round && f <= 1:
		nf = 1
	case round && f < 3, !round && f <= 2:
		nf = 2
	case round && f < 7, !round && f <= 5:
		nf = 5
	default:
		nf = 10
	}
	return nf * math.Pow(10, exp)
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

var (
	colorBackdrop = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorAxis     = color.RGBA{0x44, 0x44, 0x44, 0xff}
	colorGrid     = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorFallback = color.RGBA{0x88, 0x88, 0x88, 0xff}
)

// parseHex converts "#RRGGBB" to a color, falling back to gray.
func parseHex(s string) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return colorFallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return colorFallback
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

// --- PNG -------------------------------------------------------------------

func renderPNG(w io.Writer, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Title, layout.Left, layout.Top/2, 0, 0.5)

	if layout.Empty {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored("No data for the current selection",
			float64(layout.Width)/2, float64(layout.Height)/2, 0.5, 0.5)
		return dc.EncodePNG(w)
	}

	drawGrid(dc, layout)

	dc.SetLineWidth(model.DefaultBorderWidth)
	for _, s := range layout.Series {
		dc.SetColor(s.Color)
		for _, seg := range s.Segments {
			if len(seg) == 1 {
				dc.DrawCircle(seg[0].X, seg[0].Y, 2.5)
				dc.Fill()
				continue
			}
			dc.MoveTo(seg[0].X, seg[0].Y)
			for _, p := range seg[1:] {
				dc.LineTo(p.X, p.Y)
			}
			dc.Stroke()
		}
	}

	drawLegend(dc, layout)
	return dc.EncodePNG(w)
}

func drawGrid(dc *gg.Context, layout layoutResult) {
	dc.SetLineWidth(1)
	for _, t := range layout.YTicks {
		dc.SetColor(colorGrid)
		dc.DrawLine(layout.Left, t.Pos, layout.Right, t.Pos)
		dc.Stroke()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(t.Label, layout.Left-8, t.Pos, 1, 0.5)
	}
	for _, t := range layout.XTicks {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(t.Label, t.Pos, layout.Bottom+16, 0.5, 0.5)
	}
	dc.SetColor(colorAxis)
	dc.DrawLine(layout.Left, layout.Bottom, layout.Right, layout.Bottom)
	dc.Stroke()
	dc.DrawLine(layout.Left, layout.Top, layout.Left, layout.Bottom)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored("step", (layout.Left+layout.Right)/2, layout.Bottom+36, 0.5, 0.5)
}

func drawLegend(dc *gg.Context, layout layoutResult) {
	x := layout.Right + 24
	y := layout.Top + 8
	for _, s := range layout.Series {
		dc.SetColor(s.Color)
		dc.DrawRectangle(x, y-5, 18, 10)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(truncate(s.Label, 24), x+26, y, 0, 0.5)
		y += 20
	}
}

// --- SVG -------------------------------------------------------------------

func renderSVG(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Text(int(layout.Left), int(layout.Top/2), layout.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:sans-serif;font-weight:bold", css(colorText)))

	if layout.Empty {
		canvas.Text(layout.Width/2, layout.Height/2, "No data for the current selection",
			fmt.Sprintf("fill:%s;font-size:14px;font-family:sans-serif;text-anchor:middle", css(colorSubtle)))
		canvas.End()
		return nil
	}

	left, right := int(layout.Left), int(layout.Right)
	top, bottom := int(layout.Top), int(layout.Bottom)
	for _, t := range layout.YTicks {
		y := int(t.Pos)
		canvas.Line(left, y, right, y, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorGrid)))
		canvas.Text(left-8, y+4, t.Label,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif;text-anchor:end", css(colorSubtle)))
	}
	for _, t := range layout.XTicks {
		canvas.Text(int(t.Pos), bottom+20, t.Label,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif;text-anchor:middle", css(colorSubtle)))
	}
	canvas.Line(left, bottom, right, bottom, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorAxis)))
	canvas.Line(left, top, left, bottom, fmt.Sprintf("stroke:%s;stroke-width:1", css(colorAxis)))
	canvas.Text((left+right)/2, bottom+40, "step",
		fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif;text-anchor:middle", css(colorSubtle)))

	for _, s := range layout.Series {
		canvas.Group(`class="series"`)
		for _, seg := range s.Segments {
			xs, ys := make([]int, len(seg)), make([]int, len(seg))
			for i, p := range seg {
				xs[i], ys[i] = int(math.Round(p.X)), int(math.Round(p.Y))
			}
			if len(seg) == 1 {
				canvas.Circle(xs[0], ys[0], 3, fmt.Sprintf("fill:%s", css(s.Color)))
				continue
			}
			canvas.Polyline(xs, ys,
				fmt.Sprintf("fill:none;stroke:%s;stroke-width:%d", css(s.Color), model.DefaultBorderWidth))
		}
		canvas.Gend()
	}

	x := right + 24
	y := top + 8
	for _, s := range layout.Series {
		canvas.Rect(x, y-5, 18, 10, fmt.Sprintf("fill:%s", css(s.Color)))
		canvas.Text(x+26, y+4, truncate(s.Label, 24),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif", css(colorText)))
		y += 20
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
