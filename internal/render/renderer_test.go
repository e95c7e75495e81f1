package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

func testChart(ticks, cores int, layout Layout) Chart {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := Chart{Layout: layout, MemoryUnit: "MB"}
	for i := 0; i < ticks; i++ {
		c.XAxis = append(c.XAxis, start.Add(time.Duration(i)*time.Second))
	}
	for _, name := range []string{"1", "2", "3"} {
		s := Series{Name: name, Color: "#1f77b4"}
		for i := 0; i < ticks; i++ {
			s.CPU = append(s.CPU, 40)
			s.Memory = append(s.Memory, 50)
		}
		for core := 0; core < cores; core++ {
			values := make([]float64, ticks)
			for i := range values {
				values[i] = 10
			}
			s.PerCore = append(s.PerCore, values)
		}
		c.Series = append(c.Series, s)
	}
	return c
}

func TestRender_Aggregate(t *testing.T) {
	r := NewRenderer(400, 300)

	out, err := r.Render(testChart(5, 0, LayoutAggregate))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy(), "cpu and memory panels are stacked")
}

func TestRender_PerCoreGrid(t *testing.T) {
	r := NewRenderer(400, 300)

	out, err := r.Render(testChart(5, 4, LayoutPerCore))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	// 4 core panels + memory = 5 panels in a 3x2 grid.
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestRender_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		chart Chart
	}{
		{name: "single tick", chart: testChart(1, 0, LayoutAggregate)},
		{name: "no series", chart: Chart{XAxis: testChart(3, 0, LayoutAggregate).XAxis}},
		{name: "per-core without cores", chart: testChart(3, 0, LayoutPerCore)},
		{
			name: "series shorter than axis",
			chart: func() Chart {
				c := testChart(3, 0, LayoutAggregate)
				c.Series[1].CPU = c.Series[1].CPU[:2]
				return c
			}(),
		},
	}

	r := NewRenderer(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.chart)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrRender))
		})
	}
}

func TestChartCores(t *testing.T) {
	c := testChart(3, 4, LayoutPerCore)
	c.Series[2].PerCore = c.Series[2].PerCore[:2]
	assert.Equal(t, 2, c.Cores())
	assert.Equal(t, 0, Chart{}.Cores())
}

func TestSeriesColor(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want drawing.Color
	}{
		{name: "hex with hash", raw: "#ff0000", want: drawing.ColorFromHex("ff0000")},
		{name: "hex without hash", raw: "00FF00", want: drawing.ColorFromHex("00ff00")},
		{name: "short hex", raw: "#00f", want: drawing.ColorFromHex("00f")},
		{name: "named", raw: "Red", want: drawing.ColorFromHex("d62728")},
		{name: "empty uses palette", raw: "", want: chart.GetDefaultColor(2)},
		{name: "garbage uses palette", raw: "not-a-color", want: chart.GetDefaultColor(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, seriesColor(tt.raw, 2))
		})
	}
}

func TestLayoutString(t *testing.T) {
	assert.Equal(t, "aggregate", LayoutAggregate.String())
	assert.Equal(t, "per-core", LayoutPerCore.String())
}

func TestColorHex(t *testing.T) {
	assert.Equal(t, "#d62728", ColorHex("red", 0))
	assert.Equal(t, "#ff0000", ColorHex("#FF0000", 0))
	assert.Regexp(t, `^#[0-9a-f]{6}$`, ColorHex("", 3))
}
