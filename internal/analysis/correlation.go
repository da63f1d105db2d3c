package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultAlpha is the significance level used when none is given.
const DefaultAlpha = 0.05

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrConstantInput    = errors.New("constant input")
)

// Regression is the result of a simple linear regression of y on x.
type Regression struct {
	N         int     `json:"n"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R         float64 `json:"r"`
	RSquared  float64 `json:"r_squared"`
	// PValue is two-sided, for the null hypothesis of zero slope, from a t
	// distribution with N-2 degrees of freedom.
	PValue float64 `json:"p_value"`
	// StdErr is the standard error of the slope.
	StdErr float64 `json:"std_err"`
}

// Predict evaluates the fitted line at x.
func (r Regression) Predict(x float64) float64 {
	return r.Intercept + r.Slope*x
}

// Significant reports whether the slope differs from zero at level alpha.
func (r Regression) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// Summary describes the fit in one line.
func (r Regression) Summary(alpha float64) string {
	verdict := "not statistically significant"
	if r.Significant(alpha) {
		verdict = "statistically significant"
	}
	return fmt.Sprintf("R² = %.3f, p-value = %.3f: the relationship is %s", r.RSquared, r.PValue, verdict)
}

// Correlate fits y = Intercept + Slope*x by ordinary least squares. Pairs
// where either value is NaN are dropped first.
func Correlate(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, fmt.Errorf("correlate: length mismatch %d != %d", len(x), len(y))
	}
	xs, ys := dropNaN(x, y)
	n := len(xs)
	if n < 3 {
		return Regression{}, fmt.Errorf("correlate: %w: %d complete pairs", ErrInsufficientData, n)
	}
	if stat.Variance(xs, nil) == 0 {
		return Regression{}, fmt.Errorf("correlate: %w: x", ErrConstantInput)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	reg := Regression{N: n, Slope: slope, Intercept: intercept}

	if stat.Variance(ys, nil) == 0 {
		// A flat y fits exactly with zero slope but has no correlation.
		reg.PValue = 1
		return reg, nil
	}

	r := stat.Correlation(xs, ys, nil)
	dof := float64(n - 2)
	reg.R = r
	reg.RSquared = r * r

	residual := (1 - r) * (1 + r)
	if residual <= 0 {
		return reg, nil
	}
	t := r * math.Sqrt(dof/residual)
	reg.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}.Survival(math.Abs(t))
	reg.StdErr = math.Sqrt(residual * stat.Variance(ys, nil) / stat.Variance(xs, nil) / dof)
	return reg, nil
}

func dropNaN(x, y []float64) (xs, ys []float64) {
	xs = make([]float64, 0, len(x))
	ys = make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
