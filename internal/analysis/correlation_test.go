package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelate_KnownValues(t *testing.T) {
	reg, err := Correlate([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 5, 4, 5})
	require.NoError(t, err)

	assert.Equal(t, 5, reg.N)
	assert.InDelta(t, 0.6, reg.Slope, 1e-12)
	assert.InDelta(t, 2.2, reg.Intercept, 1e-12)
	assert.InDelta(t, 0.7745966692414834, reg.R, 1e-12)
	assert.InDelta(t, 0.6, reg.RSquared, 1e-12)
	assert.InDelta(t, 0.12402706265755459, reg.PValue, 1e-9)
	assert.InDelta(t, 0.28284271247461895, reg.StdErr, 1e-12)
	assert.False(t, reg.Significant(DefaultAlpha))
	assert.InDelta(t, 5.2, reg.Predict(5), 1e-12)
	assert.Contains(t, reg.Summary(DefaultAlpha), "not statistically significant")
}

func TestCorrelate_PerfectLine(t *testing.T) {
	reg, err := Correlate([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, reg.Slope, 1e-12)
	assert.InDelta(t, 1.0, reg.Intercept, 1e-12)
	assert.InDelta(t, 1.0, reg.RSquared, 1e-12)
	assert.InDelta(t, 0.0, reg.PValue, 1e-12)
	assert.InDelta(t, 0.0, reg.StdErr, 1e-12)
	assert.True(t, reg.Significant(DefaultAlpha))
}

func TestCorrelate_DropsNaNPairs(t *testing.T) {
	nan := math.NaN()
	reg, err := Correlate([]float64{1, 2, nan, 3, 4}, []float64{2, 4, 100, nan, 8})
	require.NoError(t, err)

	assert.Equal(t, 3, reg.N)
	assert.InDelta(t, 2.0, reg.Slope, 1e-12)
}

func TestCorrelate_Errors(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want error
	}{
		{"too few pairs", []float64{1, 2}, []float64{1, 2}, ErrInsufficientData},
		{"constant x", []float64{3, 3, 3}, []float64{1, 2, 3}, ErrConstantInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Correlate(tt.x, tt.y)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Correlate([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length mismatch")
}

func TestCorrelate_FlatY(t *testing.T) {
	reg, err := Correlate([]float64{1, 2, 3}, []float64{4, 4, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, reg.Slope, 1e-12)
	assert.InDelta(t, 4.0, reg.Intercept, 1e-12)
	assert.InDelta(t, 1.0, reg.PValue, 0)
}
