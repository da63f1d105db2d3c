package main

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qwyt/wp-police-shooting/internal/analysis"
	"github.com/qwyt/wp-police-shooting/internal/chart"
)

func reportCmd(load loader, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print how events were reconciled to counties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := load(cmd.Context(), opts.spendingYear)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Result.Report)
		},
	}
}

func corrCmd(load loader, opts *options) *cobra.Command {
	var chartPath string

	cmd := &cobra.Command{
		Use:   "corr X Y",
		Short: "Regress one state-level variable on another",
		Long: `X and Y are a derived variable (shootings, shootings_per_million,
homicides_per_million, spending_per_capita), a county facts column code, or
a facts dictionary description.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), opts.spendingYear)
			if err != nil {
				return err
			}
			x, err := s.variable(args[0])
			if err != nil {
				return err
			}
			y, err := s.variable(args[1])
			if err != nil {
				return err
			}

			reg, err := analysis.Correlate(analysis.Series(s.Profiles, x), analysis.Series(s.Profiles, y))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s ~ %s (n=%d)\n", s.label(y), s.label(x), reg.N)
			fmt.Fprintf(out, "slope = %.4g, intercept = %.4g, std err = %.4g\n", reg.Slope, reg.Intercept, reg.StdErr)
			fmt.Fprintln(out, reg.Summary(opts.alpha))

			return saveChart(out, chartPath, func() error {
				points := make([]chart.Point, len(s.Profiles))
				for i, p := range s.Profiles {
					points[i] = chart.Point{Label: p.State, X: p.Variable(x), Y: p.Variable(y)}
				}
				title := fmt.Sprintf("%s vs %s", s.label(y), s.label(x))
				fig := chart.Scatter(title, s.label(x), s.label(y), points, &reg)
				return chart.SaveHTML(chartPath, fig, opts.render())
			})
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "Write a scatter plot with trendline to this HTML file")
	return cmd
}

func scanCmd(load loader, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan Y",
		Short: "Correlate every reference variable with Y, strongest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), opts.spendingYear)
			if err != nil {
				return err
			}
			y, err := s.variable(args[0])
			if err != nil {
				return err
			}

			type row struct {
				name string
				reg  analysis.Regression
			}
			var rows []row
			ys := analysis.Series(s.Profiles, y)
			for _, desc := range s.Ref.CorrelationVariables {
				x, err := s.variable(desc)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: %v\n", desc, err)
					continue
				}
				reg, err := analysis.Correlate(analysis.Series(s.Profiles, x), ys)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: %v\n", desc, err)
					continue
				}
				rows = append(rows, row{name: s.label(x), reg: reg})
			}
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].reg.RSquared > rows[j].reg.RSquared })

			out := cmd.OutOrStdout()
			for _, r := range rows {
				mark := " "
				if r.reg.Significant(opts.alpha) {
					mark = "*"
				}
				fmt.Fprintf(out, "%s R²=%.3f p=%.3f r=%+.3f  %s\n", mark, r.reg.RSquared, r.reg.PValue, r.reg.R, r.name)
			}
			fmt.Fprintf(out, "* significant at alpha = %g\n", opts.alpha)
			return nil
		},
	}
}

func chi2Cmd(load loader, opts *options) *cobra.Command {
	var chartPath, reason string

	cmd := &cobra.Command{
		Use:   "chi2 ROW COL",
		Short: "Test two event categories for independence",
		Long:  "Columns: " + strings.Join(analysis.ColumnNames(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd.Context(), opts.spendingYear)
			if err != nil {
				return err
			}
			ct, err := analysis.NewCrosstab(s.Result.Events, args[0], args[1])
			if err != nil {
				return err
			}
			res, err := analysis.ChiSquared(ct.Counts, opts.alpha)
			if err != nil {
				return err
			}

			if reason == "" {
				reason = fmt.Sprintf("between %s and %s", args[0], args[1])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprint(out, ct.String())
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Chi2 value: %.2f\n", res.Statistic)
			fmt.Fprintf(out, "P-value: %.5f\n", res.PValue)
			fmt.Fprintf(out, "Degrees of freedom: %d\n", res.DOF)
			fmt.Fprintln(out, res.Interpret(reason))
			fmt.Fprintf(out, "*alpha = %g\n", res.Alpha)

			return saveChart(out, chartPath, func() error {
				fig := chart.StackedBar(fmt.Sprintf("%s by %s", args[1], args[0]), args[0], "Events", ct)
				return chart.SaveHTML(chartPath, fig, opts.render())
			})
		},
	}
	cmd.Flags().StringVar(&chartPath, "chart", "", "Write a stacked bar chart to this HTML file")
	cmd.Flags().StringVar(&reason, "reason", "", "Relationship wording used in the interpretation")
	return cmd
}

func profilesCmd(load loader, opts *options) *cobra.Command {
	var chartPath, sortBy string
	var top int

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List per-state shootings, homicides and spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := load(cmd.Context(), opts.spendingYear)
			if err != nil {
				return err
			}
			key, err := s.variable(sortBy)
			if err != nil {
				return err
			}
			ranked := analysis.RankBy(s.Profiles, key)
			if top > 0 && top < len(ranked) {
				ranked = ranked[:top]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-5s %12s %10s %14s %14s %12s\n", "state", "population", "shootings", "per million", "homicides/M", "spend/cap")
			for _, p := range ranked {
				fmt.Fprintf(out, "%-5s %12d %10d %14s %14s %12s\n",
					p.State, p.Population, p.Shootings,
					formatValue(p.Variable(analysis.VarShootingsPerMillion)),
					formatValue(p.Variable(analysis.VarHomicidesPerMillion)),
					formatValue(p.Variable(analysis.VarSpendingPerCapita)))
			}

			return saveChart(out, chartPath, func() error {
				states := make([]string, len(ranked))
				values := make([]float64, len(ranked))
				for i, p := range ranked {
					states[i] = p.State
					values[i] = p.Variable(key)
				}
				fig := chart.Bar(s.label(key)+" by state", "State", s.label(key), states, values)
				return chart.SaveHTML(chartPath, fig, opts.render())
			})
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", analysis.VarShootingsPerMillion, "Variable to rank states by")
	cmd.Flags().IntVar(&top, "top", 0, "Only list the first N states")
	cmd.Flags().StringVar(&chartPath, "chart", "", "Write a bar chart of the sort variable to this HTML file")
	return cmd
}

// variable resolves a derived variable name, a facts column code, or a
// dictionary description to the key accepted by StateProfile.Variable.
func (s *study) variable(name string) (string, error) {
	switch name {
	case analysis.VarShootings, analysis.VarShootingsPerMillion,
		analysis.VarHomicidesPerMillion, analysis.VarSpendingPerCapita:
		return name, nil
	}
	if code, ok := s.Result.Dictionary.Code(name); ok {
		return code, nil
	}
	for _, p := range s.Profiles {
		if _, ok := p.Facts[name]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown variable %q", name)
}

// label is the human-readable name of a variable key.
func (s *study) label(key string) string {
	if strings.Contains(key, "_") && strings.ToLower(key) == key {
		return strings.ReplaceAll(key, "_", " ")
	}
	return s.Result.Dictionary.Describe(key)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
