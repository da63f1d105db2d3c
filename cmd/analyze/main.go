// Command analyze runs the reconciliation pipeline in memory and explores the
// result: correlations between state-level variables, chi-squared tests over
// event categories, and per-state profiles. Charts are written as HTML.
//
// Usage:
//
//	go run ./cmd/analyze corr INC110213 shootings_per_million --chart out/income.html
//	go run ./cmd/analyze chi2 g_race_short body_camera
//	go run ./cmd/analyze scan shootings_per_million
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qwyt/wp-police-shooting/internal/analysis"
	"github.com/qwyt/wp-police-shooting/internal/chart"
	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

// study is the loaded data every subcommand works on.
type study struct {
	Result   *pipeline.Result
	Ref      *reference.Data
	Profiles []analysis.StateProfile
}

// options are the persistent flags shared by all subcommands.
type options struct {
	alpha         float64
	spendingYear  int
	theme         string
	showToolbar   bool
	width, height float64
}

func (o *options) render() chart.RenderConfig {
	cfg := chart.DefaultRenderConfig()
	cfg.Theme = o.theme
	cfg.DisplayModeBar = o.showToolbar
	cfg.Width = o.width
	cfg.Height = o.height
	return cfg
}

// loader builds the study; tests replace it.
type loader func(ctx context.Context, spendingYear int) (*study, error)

func main() {
	if err := rootCmd(loadStudy).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(load loader) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Explore the reconciled police shootings data",
		Long: `analyze loads every dataset configured through the environment (see the
etl service), reconciles events to counties, and runs statistical tests
over the result. Nothing is written to the configured sinks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.Float64Var(&opts.alpha, "alpha", analysis.DefaultAlpha, "Significance level")
	pf.IntVar(&opts.spendingYear, "spending-year", 2017, "Year of police spending used for per-capita values")
	pf.StringVar(&opts.theme, "theme", "simple_white", "Chart theme (simple_white, plotly_white, none)")
	pf.BoolVar(&opts.showToolbar, "toolbar", false, "Show the Plotly mode bar")
	pf.Float64Var(&opts.width, "width", 900, "Chart width in pixels")
	pf.Float64Var(&opts.height, "height", 500, "Chart height in pixels")

	cmd.AddCommand(
		reportCmd(load, opts),
		corrCmd(load, opts),
		scanCmd(load, opts),
		chi2Cmd(load, opts),
		profilesCmd(load, opts),
	)
	return cmd
}

// loadStudy runs the pipeline without sinks.
func loadStudy(ctx context.Context, spendingYear int) (*study, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	ref, err := reference.Load(cfg.ReferencePath)
	if err != nil {
		return nil, err
	}

	choose := domain.NewUnseededChooser()
	if cfg.WeaponChoiceSeed != nil {
		choose = domain.NewRandomChooser(*cfg.WeaponChoiceSeed)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(pipeline.NewFileSources(cfg, ref, logger, metrics), ref, nil, pipeline.Options{
		BatchSize:    cfg.BatchSize,
		HomicideYear: cfg.HomicideYear,
		Choose:       choose,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &study{
		Result:   res,
		Ref:      ref,
		Profiles: analysis.StateProfiles(res.States, res.Events, res.Spending, spendingYear),
	}, nil
}

func saveChart(w io.Writer, path string, render func() error) error {
	if path == "" {
		return nil
	}
	if err := render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "chart written to %s\n", path)
	return nil
}
