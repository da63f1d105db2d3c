package chart

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
)

// RenderConfig controls how a figure is presented.
type RenderConfig struct {
	// Theme names one of Themes.
	Theme          string
	Bargap         float64
	FixedRange     bool
	DisplayModeBar bool
	Width          float64
	Height         float64
}

// DefaultRenderConfig is a static, toolbar-free 900x500 chart.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Theme:      "simple_white",
		Bargap:     0.35,
		FixedRange: true,
		Width:      900,
		Height:     500,
	}
}

// Themes holds the layout templates that can be selected by name. Plotly.js
// has no registry of named templates, so they are shipped with the figure.
var Themes = map[string]map[string]any{
	"simple_white": {
		"layout": map[string]any{
			"paper_bgcolor": "white",
			"plot_bgcolor":  "white",
			"colorway":      []string{"#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD", "#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF"},
			"xaxis":         map[string]any{"showgrid": false, "showline": true, "linecolor": "rgb(36,36,36)", "ticks": "outside", "zeroline": false},
			"yaxis":         map[string]any{"showgrid": false, "showline": true, "linecolor": "rgb(36,36,36)", "ticks": "outside", "zeroline": false},
		},
	},
	"plotly_white": {
		"layout": map[string]any{
			"paper_bgcolor": "white",
			"plot_bgcolor":  "white",
			"xaxis":         map[string]any{"gridcolor": "#EBF0F8", "zerolinecolor": "#EBF0F8"},
			"yaxis":         map[string]any{"gridcolor": "#EBF0F8", "zerolinecolor": "#EBF0F8"},
		},
	},
	"none": {"layout": map[string]any{}},
}

// Apply sets the presentation options of cfg on the figure layout.
func Apply(fig *grob.Fig, cfg RenderConfig) error {
	if fig.Layout == nil {
		fig.Layout = &grob.Layout{}
	}
	lay := fig.Layout

	if cfg.Theme != "" {
		tmpl, ok := Themes[cfg.Theme]
		if !ok {
			return fmt.Errorf("unknown theme %q", cfg.Theme)
		}
		lay.Template = tmpl
	}
	if cfg.Bargap > 0 {
		lay.Bargap = cfg.Bargap
	}
	if cfg.Width > 0 {
		lay.Width = cfg.Width
	}
	if cfg.Height > 0 {
		lay.Height = cfg.Height
	}

	if lay.Xaxis == nil {
		lay.Xaxis = &grob.LayoutXaxis{}
	}
	if lay.Yaxis == nil {
		lay.Yaxis = &grob.LayoutYaxis{}
	}
	fixed := grob.False
	if cfg.FixedRange {
		fixed = grob.True
	}
	lay.Xaxis.Fixedrange = fixed
	lay.Yaxis.Fixedrange = fixed
	return nil
}

var page = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.plot.ly/plotly-2.27.0.min.js"></script>
</head>
<body>
<div id="chart"></div>
<script>
Plotly.newPlot("chart", {{.Data}}, {{.Layout}}, {{.Config}});
</script>
</body>
</html>
`))

// WriteHTML applies cfg and writes the figure as a standalone HTML page.
func WriteHTML(w io.Writer, fig *grob.Fig, cfg RenderConfig) error {
	if err := Apply(fig, cfg); err != nil {
		return err
	}
	data, err := json.Marshal(fig.Data)
	if err != nil {
		return fmt.Errorf("marshal traces: %w", err)
	}
	layout, err := json.Marshal(fig.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	config, err := json.Marshal(map[string]any{"displayModeBar": cfg.DisplayModeBar})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	title := ""
	if fig.Layout.Title != nil {
		title = fmt.Sprint(fig.Layout.Title.Text)
	}
	return page.Execute(w, map[string]any{
		"Title":  title,
		"Data":   template.JS(data),
		"Layout": template.JS(layout),
		"Config": template.JS(config),
	})
}

// SaveHTML writes the figure to path, creating parent directories.
func SaveHTML(path string, fig *grob.Fig, cfg RenderConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart %s: %w", path, err)
	}
	if err := WriteHTML(f, fig, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
