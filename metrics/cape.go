package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/lightgbm"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// CAPEName is the metric name reported to the booster.
const CAPEName = "CAPE"

// CAPEHigherIsBetter is false: CAPE is an error percentage.
const CAPEHigherIsBetter = false

// CAPE computes the cumulative absolute percentage error
//
//	100 * Σ|yPred - yTrue| / Σ yTrue
//
// It returns ErrUndefinedCAPE when the ground truth sums to zero. A ground truth that
// sums to a negative value, as a differenced target can, yields a negative CAPE that
// falls as the error grows; the value is returned and an UndefinedMetricWarning is
// raised.
func CAPE(yTrue, yPred []float64) (float64, error) {
	value, total, err := cape(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(CAPEName, "ground truth summing to a negative value", value))
	}
	return value, nil
}

func cape(yTrue, yPred []float64) (value, total float64, err error) {
	if len(yTrue) == 0 {
		return 0, 0, errors.NewValueError("CAPE", "empty input")
	}
	if len(yPred) != len(yTrue) {
		return 0, 0, errors.NewDimensionError("CAPE", len(yTrue), len(yPred), 0)
	}
	total = floats.Sum(yTrue)
	if total == 0 {
		return 0, 0, errors.Wrapf(errors.ErrUndefinedCAPE, "CAPE over %d rows", len(yTrue))
	}
	return 100 * floats.Distance(yPred, yTrue, 1) / total, total, nil
}

// CAPEVec is CAPE for gonum vectors.
func CAPEVec(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("CAPEVec", "nil vector")
	}
	return CAPE(rawVec(yTrue), rawVec(yPred))
}

func rawVec(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// CAPEEval adapts CAPE to lightgbm.FEval. An undefined CAPE is reported as NaN, which
// early stopping never treats as an improvement, and raises an UndefinedMetricWarning.
// A negative ground-truth sum is not warned about here since the feval runs every
// round; lofo.Session warns once per validation set instead.
func CAPEEval(preds []float64, data *lightgbm.Dataset) (string, float64) {
	value, _, err := cape(data.GetLabel(), preds)
	if err != nil {
		errors.Warn(errors.NewUndefinedMetricWarning(CAPEName, err.Error(), math.NaN()))
		return CAPEName, math.NaN()
	}
	return CAPEName, value
}

var _ lightgbm.FEval = CAPEEval
