package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

// Default panel size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// Renderer draws charts with go-chart.
type Renderer struct {
	width  int
	height int
}

// NewRenderer creates a renderer drawing panels of width x height pixels.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{width: width, height: height}
}

// Render draws c and returns the PNG bytes.
func (r *Renderer) Render(c Chart) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRender, "Cannot render chart", "")
	}

	var panels []chart.Chart
	switch c.Layout {
	case LayoutPerCore:
		for core := 0; core < c.Cores(); core++ {
			core := core
			panels = append(panels, r.panel(c, fmt.Sprintf("CPU %d (%%)", core), percentFormatter,
				func(s Series) []float64 { return s.PerCore[core] }))
		}
	default:
		panels = append(panels, r.panel(c, "CPU (%)", percentFormatter,
			func(s Series) []float64 { return s.CPU }))
	}
	panels = append(panels, r.panel(c, memoryTitle(c.MemoryUnit), unitFormatter,
		func(s Series) []float64 { return s.Memory }))

	if c.Title != "" {
		panels[0].Title = c.Title
	}

	img, err := r.compose(panels)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRender, "Cannot render chart", "")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRender, "Cannot encode chart", "")
	}
	return buf.Bytes(), nil
}

func (r *Renderer) panel(c Chart, name string, yFormat chart.ValueFormatter, values func(Series) []float64) chart.Chart {
	series := make([]chart.Series, 0, len(c.Series))
	maxY := 0.0
	for i, s := range c.Series {
		ys := values(s)
		for _, v := range ys {
			maxY = math.Max(maxY, v)
		}
		series = append(series, chart.TimeSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeColor: seriesColor(s.Color, i),
				StrokeWidth: 2,
			},
			XValues: c.XAxis,
			YValues: ys,
		})
	}

	first := chart.TimeToFloat64(c.XAxis[0])
	last := chart.TimeToFloat64(c.XAxis[len(c.XAxis)-1])
	if last <= first {
		last = first + 1
	}
	if maxY <= 0 {
		maxY = 1
	}

	graph := chart.Chart{
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 30, Left: 10, Right: 10, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: timeFormatter,
			Range:          &chart.ContinuousRange{Min: first, Max: last},
		},
		YAxis: chart.YAxis{
			Name:           name,
			ValueFormatter: yFormat,
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}

// compose renders panels into a grid image, row by row.
func (r *Renderer) compose(panels []chart.Chart) (image.Image, error) {
	cols := int(math.Ceil(math.Sqrt(float64(len(panels)))))
	if len(panels) == 2 {
		cols = 1
	}
	rows := (len(panels) + cols - 1) / cols

	canvas := image.NewRGBA(image.Rect(0, 0, cols*r.width, rows*r.height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for i := range panels {
		w := &chart.ImageWriter{}
		if err := panels[i].Render(chart.PNG, w); err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		img, err := w.Image()
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		x, y := (i%cols)*r.width, (i/cols)*r.height
		draw.Draw(canvas, image.Rect(x, y, x+r.width, y+r.height), img, img.Bounds().Min, draw.Src)
	}
	return canvas, nil
}

func memoryTitle(unit string) string {
	if unit == "" {
		return "Memory"
	}
	return fmt.Sprintf("Memory (%s)", unit)
}

func timeFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return time.Unix(0, int64(f)).Format("15:04:05")
	}
	return ""
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f%%", f)
	}
	return ""
}

func unitFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f", f)
	}
	return ""
}

var namedColors = map[string]string{
	"red":     "d62728",
	"green":   "2ca02c",
	"blue":    "1f77b4",
	"orange":  "ff7f0e",
	"purple":  "9467bd",
	"brown":   "8c564b",
	"pink":    "e377c2",
	"gray":    "7f7f7f",
	"grey":    "7f7f7f",
	"olive":   "bcbd22",
	"cyan":    "17becf",
	"black":   "000000",
	"yellow":  "ffd700",
	"magenta": "ff00ff",
}

// seriesColor resolves a label color, falling back to the palette for index.
func seriesColor(raw string, index int) drawing.Color {
	c := strings.ToLower(strings.TrimSpace(raw))
	if hex, ok := namedColors[c]; ok {
		return drawing.ColorFromHex(hex)
	}
	c = strings.TrimPrefix(c, "#")
	if isHex(c) {
		return drawing.ColorFromHex(c)
	}
	return chart.GetDefaultColor(index)
}

func isHex(s string) bool {
	if len(s) != 3 && len(s) != 6 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// ColorHex returns the color a series would be drawn with, as #rrggbb.
func ColorHex(raw string, index int) string {
	c := seriesColor(raw, index)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
