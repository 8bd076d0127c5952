package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/lightgbm"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

func TestCAPE(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"reference example", []float64{2, 2, 2}, []float64{1, 2, 3}, 100.0 / 3.0},
		{"perfect prediction", []float64{4, 5, 6}, []float64{4, 5, 6}, 0},
		{"all over", []float64{1, 1}, []float64{2, 3}, 150},
		{"negative truth allowed", []float64{3, -1}, []float64{3, 0}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CAPE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("zero denominator", func(t *testing.T) {
		_, err := CAPE([]float64{1, -1}, []float64{0, 0})
		assert.True(t, errors.Is(err, errors.ErrUndefinedCAPE))
	})

	t.Run("negative denominator warns", func(t *testing.T) {
		var warned []error
		errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
		defer errors.SetZerologWarnFunc(nil)

		got, err := CAPE([]float64{-1, -1}, []float64{0, 0})
		require.NoError(t, err)
		assert.InDelta(t, -100, got, 1e-9)
		require.Len(t, warned, 1)
		var w *errors.UndefinedMetricWarning
		require.True(t, errors.As(warned[0], &w))
		assert.Equal(t, CAPEName, w.Metric)

		warned = nil
		_, err = CAPE([]float64{3, -1}, []float64{3, 0})
		require.NoError(t, err)
		assert.Empty(t, warned)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := CAPE(nil, nil)
		var valueErr *errors.ValueError
		assert.True(t, errors.As(err, &valueErr))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := CAPE([]float64{1, 2}, []float64{1})
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("vector form", func(t *testing.T) {
		got, err := CAPEVec(mat.NewVecDense(3, []float64{2, 2, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
		require.NoError(t, err)
		assert.InDelta(t, 33.333333, got, 1e-6)
	})
}

func TestCAPEEval(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	d, err := lightgbm.NewDataset(X, []float64{2, 2, 2})
	require.NoError(t, err)
	name, value := CAPEEval([]float64{1, 2, 3}, d)
	assert.Equal(t, CAPEName, name)
	assert.InDelta(t, 100.0/3.0, value, 1e-9)

	var warned []error
	errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
	defer errors.SetZerologWarnFunc(nil)

	zero, err := lightgbm.NewDataset(X, []float64{1, -1, 0})
	require.NoError(t, err)
	_, value = CAPEEval([]float64{1, 2, 3}, zero)
	assert.True(t, math.IsNaN(value))
	require.Len(t, warned, 1)
	var w *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warned[0], &w))
}

func TestRegressionMetrics(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3, -0.5, 2, 7})
	yPred := mat.NewVecDense(4, []float64{2.5, 0.0, 2, 8})

	mse, err := MSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	r2, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.948608, r2, 1e-6)

	_, err = R2Score(mat.NewVecDense(2, []float64{1, 1}), mat.NewVecDense(2, []float64{1, 2}))
	assert.Error(t, err)

	_, err = MSE(yTrue, mat.NewVecDense(2, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	diag, err := Diagnose([]float64{3, -0.5, 2, 7}, []float64{2.5, 0.0, 2, 8})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, diag.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(0.375), diag.RMSE, 1e-12)
}
