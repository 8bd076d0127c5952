package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Metric is a builtin evaluation metric.
type Metric interface {
	Name() string
	Eval(preds, labels []float64) float64
	HigherIsBetter() bool
}

type l2Metric struct{}

func (l2Metric) Name() string         { return "l2" }
func (l2Metric) HigherIsBetter() bool { return false }
func (l2Metric) Eval(preds, labels []float64) float64 {
	if len(preds) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range preds {
		d := preds[i] - labels[i]
		sum += d * d
	}
	return sum / float64(len(preds))
}

type rmseMetric struct{}

func (rmseMetric) Name() string         { return "rmse" }
func (rmseMetric) HigherIsBetter() bool { return false }
func (rmseMetric) Eval(preds, labels []float64) float64 {
	return math.Sqrt(l2Metric{}.Eval(preds, labels))
}

type l1Metric struct{}

func (l1Metric) Name() string         { return "l1" }
func (l1Metric) HigherIsBetter() bool { return false }
func (l1Metric) Eval(preds, labels []float64) float64 {
	if len(preds) == 0 {
		return math.NaN()
	}
	return floats.Distance(preds, labels, 1) / float64(len(preds))
}

func newMetric(name string) (Metric, error) {
	switch name {
	case "l2", "mse", "mean_squared_error", "regression":
		return l2Metric{}, nil
	case "rmse", "root_mean_squared_error", "l2_root":
		return rmseMetric{}, nil
	case "l1", "mae", "mean_absolute_error":
		return l1Metric{}, nil
	}
	return nil, errors.NewValidationError("metric", "unsupported metric", name)
}

func defaultMetric(objective string) string {
	if objective == "regression_l1" {
		return "l1"
	}
	return "l2"
}

// EvalResult is one metric value on one dataset after one boosting round.
type EvalResult struct {
	DataName       string
	MetricName     string
	Value          float64
	HigherIsBetter bool
}

// better reports whether candidate improves on best. NaN never improves.
func better(candidate, best float64, higherIsBetter bool) bool {
	if math.IsNaN(candidate) {
		return false
	}
	if math.IsNaN(best) {
		return true
	}
	if higherIsBetter {
		return candidate > best
	}
	return candidate < best
}
