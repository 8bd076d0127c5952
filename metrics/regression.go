// Package metrics provides the error measures used to score forecasts.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE computes the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE computes the root mean squared error.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE computes the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score computes the coefficient of determination. A constant ground truth yields an
// error since the score is undefined.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	mean := mat.Sum(yTrue) / float64(n)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		d := t - yPred.AtVec(i)
		ssRes += d * d
		ssTot += (t - mean) * (t - mean)
	}
	if ssTot == 0 {
		return 0, errors.NewValueError("R2Score", "ground truth is constant")
	}
	return 1 - ssRes/ssTot, nil
}

// Diagnostics bundles the secondary measures reported next to CAPE.
type Diagnostics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// Diagnose computes MAE and RMSE for plain slices.
func Diagnose(yTrue, yPred []float64) (Diagnostics, error) {
	if len(yTrue) == 0 {
		return Diagnostics{}, errors.NewValueError("Diagnose", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return Diagnostics{}, errors.NewDimensionError("Diagnose", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))
	mae, err := MAE(t, p)
	if err != nil {
		return Diagnostics{}, err
	}
	rmse, err := RMSE(t, p)
	if err != nil {
		return Diagnostics{}, err
	}
	return Diagnostics{MAE: mae, RMSE: rmse}, nil
}
