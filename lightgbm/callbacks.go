package lightgbm

import (
	"time"

	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// CallbackEnv is passed to callbacks after every boosting round.
type CallbackEnv struct {
	Booster *Booster
	// Iteration is the absolute index of the tree just added.
	Iteration      int
	BeginIteration int
	EndIteration   int
	EvalResults    []EvalResult
	Elapsed        time.Duration
	StopTraining   bool
}

// Callback runs after every boosting round. Setting env.StopTraining ends training after
// the current round.
type Callback func(env *CallbackEnv) error

// RecordEvaluation appends every evaluation result to history, keyed by data name and
// metric name.
func RecordEvaluation(history map[string]map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		for _, r := range env.EvalResults {
			if history[r.DataName] == nil {
				history[r.DataName] = make(map[string][]float64)
			}
			history[r.DataName][r.MetricName] = append(history[r.DataName][r.MetricName], r.Value)
		}
		return nil
	}
}

// LogEvaluation logs the evaluation results every period rounds at debug level.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		round := env.Iteration - env.BeginIteration
		if round%period != 0 && env.Iteration != env.EndIteration-1 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		for _, r := range env.EvalResults {
			fields = append(fields, r.DataName+"."+r.MetricName, r.Value)
		}
		logger.Debug("Boosting round finished", fields...)
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first round.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = time.Now().Add(-env.Elapsed)
		}
		if time.Since(start) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}
