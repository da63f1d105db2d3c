package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwyt/wp-police-shooting/internal/analysis"
)

func TestScatter_WithTrendline(t *testing.T) {
	reg := &analysis.Regression{Slope: 2, Intercept: 1}
	points := []Point{
		{Label: "AL", X: 1, Y: 3},
		{Label: "AK", X: 4, Y: 9},
		{Label: "AZ", X: math.NaN(), Y: 1},
		{Label: "AR", X: 2, Y: 5},
	}

	fig := Scatter("Shootings vs income", "Income", "Shootings per million", points, reg)

	require.Len(t, fig.Data, 2)
	markers, ok := fig.Data[0].(*grob.Scatter)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 4, 2}, markers.X)
	assert.Equal(t, []string{"AL", "AK", "AR"}, markers.Text)

	line, ok := fig.Data[1].(*grob.Scatter)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 4}, line.X)
	assert.Equal(t, []float64{3, 9}, line.Y)
}

func TestScatter_NoRegression(t *testing.T) {
	fig := Scatter("t", "x", "y", []Point{{X: 1, Y: 1}}, nil)
	assert.Len(t, fig.Data, 1)
}

func TestBarAndStackedBar(t *testing.T) {
	fig := Bar("Shootings by race", "Race", "Count", []string{"Black", "White"}, []float64{3, 5})
	require.Len(t, fig.Data, 1)
	bar := fig.Data[0].(*grob.Bar)
	assert.Equal(t, []string{"Black", "White"}, bar.X)

	ct := analysis.Crosstab{
		RowLabels: []string{"Black", "White"},
		ColLabels: []string{"false", "true"},
		Counts:    [][]float64{{1, 2}, {3, 4}},
	}
	stacked := StackedBar("Body camera by race", "Race", "Count", ct)
	require.Len(t, stacked.Data, 2)
	assert.Equal(t, []float64{2, 4}, stacked.Data[1].(*grob.Bar).Y)
	assert.Equal(t, grob.BarBarmodeStack, stacked.Layout.Barmode)
}

func TestApply_Defaults(t *testing.T) {
	fig := Bar("t", "x", "y", nil, nil)
	require.NoError(t, Apply(fig, DefaultRenderConfig()))

	assert.InDelta(t, 0.35, fig.Layout.Bargap, 0)
	assert.InDelta(t, 900.0, fig.Layout.Width, 0)
	assert.InDelta(t, 500.0, fig.Layout.Height, 0)
	assert.Equal(t, grob.True, fig.Layout.Xaxis.Fixedrange)
	assert.Equal(t, grob.True, fig.Layout.Yaxis.Fixedrange)
	assert.Equal(t, Themes["simple_white"], fig.Layout.Template)
}

func TestApply_UnknownTheme(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.Theme = "neon"
	err := Apply(&grob.Fig{}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neon")
}

func TestWriteHTML(t *testing.T) {
	fig := Bar("Police <spending>", "State", "USD", []string{"AL"}, []float64{1})

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, fig, DefaultRenderConfig()))

	out := buf.String()
	assert.Contains(t, out, `Plotly.newPlot("chart"`)
	assert.Contains(t, out, `{"displayModeBar":false}`)
	assert.Contains(t, out, `"bargap":0.35`)
	assert.Contains(t, out, `"fixedrange":true`)
	assert.Contains(t, out, "<title>Police &lt;spending&gt;</title>")
}

func TestSaveHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "bar.html")
	require.NoError(t, SaveHTML(path, Bar("t", "x", "y", []string{"a"}, []float64{1}), DefaultRenderConfig()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<!DOCTYPE html>")
}
