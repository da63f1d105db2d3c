// Package chart builds Plotly figures for the analysis commands and writes
// them as standalone HTML pages.
package chart

import (
	"math"
	"slices"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"

	"github.com/qwyt/wp-police-shooting/internal/analysis"
)

// Point is one labelled observation of a scatter plot.
type Point struct {
	Label string
	X, Y  float64
}

// Scatter plots points with hover labels. When reg is non-nil an OLS
// trendline spanning the x range is added as a second trace.
func Scatter(title, xLabel, yLabel string, points []Point, reg *analysis.Regression) *grob.Fig {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	labels := make([]string, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		labels = append(labels, p.Label)
	}

	fig := newFigure(title, xLabel, yLabel)
	fig.AddTraces(&grob.Scatter{
		Type: grob.TraceTypeScatter,
		Name: yLabel,
		X:    xs,
		Y:    ys,
		Text: labels,
		Mode: grob.ScatterModeMarkers,
	})

	if reg != nil && len(xs) > 0 {
		lo, hi := slices.Min(xs), slices.Max(xs)
		fig.AddTraces(&grob.Scatter{
			Type: grob.TraceTypeScatter,
			Name: "OLS trendline",
			X:    []float64{lo, hi},
			Y:    []float64{reg.Predict(lo), reg.Predict(hi)},
			Mode: grob.ScatterModeLines,
			Line: &grob.ScatterLine{Color: "#d62728"},
		})
	}
	return fig
}

// Bar plots one value per category, in the given order.
func Bar(title, xLabel, yLabel string, categories []string, values []float64) *grob.Fig {
	fig := newFigure(title, xLabel, yLabel)
	fig.AddTraces(&grob.Bar{
		Type: grob.TraceTypeBar,
		Name: yLabel,
		X:    categories,
		Y:    values,
	})
	return fig
}

// StackedBar plots a crosstab with one bar series per column label.
func StackedBar(title, xLabel, yLabel string, ct analysis.Crosstab) *grob.Fig {
	fig := newFigure(title, xLabel, yLabel)
	for j, col := range ct.ColLabels {
		values := make([]float64, len(ct.RowLabels))
		for i := range ct.RowLabels {
			values[i] = ct.Counts[i][j]
		}
		fig.AddTraces(&grob.Bar{
			Type: grob.TraceTypeBar,
			Name: col,
			X:    ct.RowLabels,
			Y:    values,
		})
	}
	fig.Layout.Barmode = grob.BarBarmodeStack
	fig.Layout.Showlegend = grob.True
	return fig
}

func newFigure(title, xLabel, yLabel string) *grob.Fig {
	return &grob.Fig{
		Layout: &grob.Layout{
			Title: &grob.LayoutTitle{Text: title},
			Xaxis: &grob.LayoutXaxis{Title: &grob.LayoutXaxisTitle{Text: xLabel}},
			Yaxis: &grob.LayoutYaxis{Title: &grob.LayoutYaxisTitle{Text: yLabel}},
		},
	}
}
