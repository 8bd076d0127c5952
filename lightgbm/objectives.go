package lightgbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// ObjectiveFunction supplies first and second order derivatives of a loss.
type ObjectiveFunction interface {
	CalculateGradient(prediction, target float64) float64
	CalculateHessian(prediction, target float64) float64
	CalculateLoss(prediction, target float64) float64
	// GetInitScore returns the constant prediction boosting starts from.
	GetInitScore(targets []float64) float64
	Name() string
}

// L2Objective is squared error.
type L2Objective struct{}

func (L2Objective) CalculateGradient(prediction, target float64) float64 { return prediction - target }
func (L2Objective) CalculateHessian(_, _ float64) float64                { return 1.0 }
func (L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}
func (L2Objective) GetInitScore(targets []float64) float64 { return stat.Mean(targets, nil) }
func (L2Objective) Name() string                           { return "regression" }

// L1Objective is absolute error. The hessian is constant so leaves move by the mean sign.
type L1Objective struct{}

func (L1Objective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	switch {
	case diff > 0:
		return 1.0
	case diff < 0:
		return -1.0
	}
	return 0.0
}
func (L1Objective) CalculateHessian(_, _ float64) float64 { return 1.0 }
func (L1Objective) CalculateLoss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}
func (L1Objective) GetInitScore(targets []float64) float64 { return quantile(targets, 0.5) }
func (L1Objective) Name() string                           { return "regression_l1" }

// HuberObjective is quadratic within Delta of the target and linear outside.
type HuberObjective struct {
	Delta float64
}

func (o HuberObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.Delta {
		return diff
	}
	if diff > 0 {
		return o.Delta
	}
	return -o.Delta
}

// CalculateHessian is constant; a vanishing hessian outside Delta would blow up leaf outputs.
func (o HuberObjective) CalculateHessian(_, _ float64) float64 {
	return 1.0
}

func (o HuberObjective) CalculateLoss(prediction, target float64) float64 {
	absDiff := math.Abs(prediction - target)
	if absDiff <= o.Delta {
		return 0.5 * absDiff * absDiff
	}
	return o.Delta * (absDiff - 0.5*o.Delta)
}

func (o HuberObjective) GetInitScore(targets []float64) float64 { return stat.Mean(targets, nil) }
func (o HuberObjective) Name() string                           { return "huber" }

// FairObjective is the Fair robust loss with scale C.
type FairObjective struct {
	C float64
}

func (o FairObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	return o.C * diff / (math.Abs(diff) + o.C)
}

func (o FairObjective) CalculateHessian(prediction, target float64) float64 {
	d := math.Abs(prediction-target) + o.C
	return o.C * o.C / (d * d)
}

func (o FairObjective) CalculateLoss(prediction, target float64) float64 {
	x := math.Abs(prediction-target) / o.C
	return o.C * o.C * (x - math.Log1p(x))
}

func (o FairObjective) GetInitScore(targets []float64) float64 { return quantile(targets, 0.5) }
func (o FairObjective) Name() string                           { return "fair" }

// QuantileObjective is the pinball loss at level Alpha.
type QuantileObjective struct {
	Alpha float64
}

func (o QuantileObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	switch {
	case diff > 0:
		return 1 - o.Alpha
	case diff < 0:
		return -o.Alpha
	}
	return 0.0
}

func (o QuantileObjective) CalculateHessian(_, _ float64) float64 { return 1.0 }

func (o QuantileObjective) CalculateLoss(prediction, target float64) float64 {
	diff := target - prediction
	if diff >= 0 {
		return o.Alpha * diff
	}
	return (o.Alpha - 1) * diff
}

func (o QuantileObjective) GetInitScore(targets []float64) float64 {
	return quantile(targets, o.Alpha)
}
func (o QuantileObjective) Name() string { return "quantile" }

// CreateObjectiveFunction returns the objective named by p.Objective.
func CreateObjectiveFunction(p Params) (ObjectiveFunction, error) {
	switch p.Objective {
	case "regression":
		return L2Objective{}, nil
	case "regression_l1":
		return L1Objective{}, nil
	case "huber":
		return HuberObjective{Delta: p.HuberDelta}, nil
	case "fair":
		return FairObjective{C: p.FairC}, nil
	case "quantile":
		return QuantileObjective{Alpha: p.QuantileAlpha}, nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", p.Objective)
}

// quantile interpolates linearly between order statistics, so the median of an even
// sample is the mean of the two middle values.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
