package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var ErrZeroExpected = errors.New("expected frequency is zero")

// ChiSquaredResult is the outcome of a chi-squared test of independence.
type ChiSquaredResult struct {
	Statistic float64     `json:"statistic"`
	PValue    float64     `json:"p_value"`
	DOF       int         `json:"dof"`
	Expected  [][]float64 `json:"expected"`
	Alpha     float64     `json:"alpha"`
}

// Reject reports whether independence is rejected at the result's alpha.
func (r ChiSquaredResult) Reject() bool {
	return r.PValue < r.Alpha
}

// Interpret phrases the decision for the relationship described by reason,
// e.g. "between race and threat type".
func (r ChiSquaredResult) Interpret(reason string) string {
	if r.Reject() {
		return fmt.Sprintf("Reject null hypothesis: There is a relationship %s.", reason)
	}
	return fmt.Sprintf("Fail to reject null hypothesis: There is no relationship %s.", reason)
}

// ChiSquared tests the independence of the rows and columns of an observed
// frequency table. With one degree of freedom Yates' continuity correction is
// applied. A table with a single row or column has zero degrees of freedom
// and yields a zero statistic and a p-value of 1.
func ChiSquared(table [][]float64, alpha float64) (ChiSquaredResult, error) {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	rows, cols, err := shape(table)
	if err != nil {
		return ChiSquaredResult{}, err
	}

	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	var total float64
	for i, row := range table {
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				return ChiSquaredResult{}, fmt.Errorf("chi-squared: invalid frequency %v at [%d][%d]", v, i, j)
			}
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}

	expected := make([][]float64, rows)
	for i := range expected {
		expected[i] = make([]float64, cols)
		for j := range expected[i] {
			e := rowSums[i] * colSums[j] / total
			if e == 0 || math.IsNaN(e) {
				return ChiSquaredResult{}, fmt.Errorf("chi-squared: %w at [%d][%d]", ErrZeroExpected, i, j)
			}
			expected[i][j] = e
		}
	}

	res := ChiSquaredResult{DOF: (rows - 1) * (cols - 1), Expected: expected, Alpha: alpha}
	if res.DOF == 0 {
		res.PValue = 1
		return res, nil
	}

	yates := res.DOF == 1
	for i, row := range table {
		for j, observed := range row {
			d := observed - expected[i][j]
			if yates {
				d -= math.Copysign(math.Min(0.5, math.Abs(d)), d)
			}
			res.Statistic += d * d / expected[i][j]
		}
	}
	res.PValue = distuv.ChiSquared{K: float64(res.DOF)}.Survival(res.Statistic)
	return res, nil
}

func shape(table [][]float64) (rows, cols int, err error) {
	rows = len(table)
	if rows == 0 || len(table[0]) == 0 {
		return 0, 0, fmt.Errorf("chi-squared: %w: empty table", ErrInsufficientData)
	}
	cols = len(table[0])
	for i, row := range table {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("chi-squared: row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return rows, cols, nil
}
