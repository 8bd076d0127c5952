package lightgbm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Params holds parsed training parameters.
type Params struct {
	Objective    string
	LearningRate float64

	// Tree shape
	NumLeaves           int
	MaxDepth            int // <= 0 means unlimited
	MinDataInLeaf       int
	MinSumHessianInLeaf float64

	// Regularization
	LambdaL1       float64
	LambdaL2       float64
	MinGainToSplit float64

	// Sampling
	BaggingFraction float64
	BaggingFreq     int
	FeatureFraction float64

	MaxBin int

	// Objective-specific
	HuberDelta    float64
	FairC         float64
	QuantileAlpha float64

	// Metric lists builtin metrics evaluated every round. Empty disables them.
	Metric []string

	Seed       uint64
	NumThreads int
}

// DefaultParams returns LightGBM's defaults for regression.
func DefaultParams() Params {
	return Params{
		Objective:           "regression",
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		LambdaL2:            0,
		BaggingFraction:     1.0,
		FeatureFraction:     1.0,
		MaxBin:              255,
		HuberDelta:          1.0,
		FairC:               1.0,
		QuantileAlpha:       0.9,
		NumThreads:          1,
	}
}

var paramAliases = map[string]string{
	"objective":                   "objective",
	"objective_type":              "objective",
	"application":                 "objective",
	"learning_rate":               "learning_rate",
	"eta":                         "learning_rate",
	"shrinkage_rate":              "learning_rate",
	"num_leaves":                  "num_leaves",
	"max_leaves":                  "num_leaves",
	"max_depth":                   "max_depth",
	"min_data_in_leaf":            "min_data_in_leaf",
	"min_child_samples":           "min_data_in_leaf",
	"min_sum_hessian_in_leaf":     "min_sum_hessian_in_leaf",
	"min_child_weight":            "min_sum_hessian_in_leaf",
	"lambda_l1":                   "lambda_l1",
	"reg_alpha":                   "lambda_l1",
	"alpha":                       "lambda_l1",
	"lambda_l2":                   "lambda_l2",
	"reg_lambda":                  "lambda_l2",
	"lambda":                      "lambda_l2",
	"min_gain_to_split":           "min_gain_to_split",
	"min_split_gain":              "min_gain_to_split",
	"gamma":                       "min_gain_to_split",
	"bagging_fraction":            "bagging_fraction",
	"subsample":                   "bagging_fraction",
	"bagging_freq":                "bagging_freq",
	"feature_fraction":            "feature_fraction",
	"colsample_bytree":            "feature_fraction",
	"max_bin":                     "max_bin",
	"huber_delta":                 "huber_delta",
	"fair_c":                      "fair_c",
	"quantile_alpha":              "quantile_alpha",
	"metric":                      "metric",
	"eval_metric":                 "metric",
	"seed":                        "seed",
	"random_state":                "seed",
	"num_threads":                 "num_threads",
	"nthread":                     "num_threads",
	"n_jobs":                      "num_threads",
	"disable_default_eval_metric": "disable_default_eval_metric",
}

// accepted for compatibility with XGBoost parameter sets and ignored
var ignoredParams = map[string]bool{
	"tree_method":   true,
	"device":        true,
	"gpu_id":        true,
	"predictor":     true,
	"verbosity":     true,
	"verbose":       true,
	"silent":        true,
	"booster":       true,
	"boosting":      true,
	"boosting_type": true,
}

var objectiveAliases = map[string]string{
	"regression":           "regression",
	"regression_l2":        "regression",
	"l2":                   "regression",
	"mse":                  "regression",
	"reg:squarederror":     "regression",
	"reg:linear":           "regression",
	"regression_l1":        "regression_l1",
	"l1":                   "regression_l1",
	"mae":                  "regression_l1",
	"reg:absoluteerror":    "regression_l1",
	"huber":                "huber",
	"reg:pseudohubererror": "huber",
	"fair":                 "fair",
	"quantile":             "quantile",
	"reg:quantileerror":    "quantile",
}

// ParseParams converts a parameter map into Params, resolving aliases. Unknown keys and
// values of the wrong type are reported as ValidationError.
func ParseParams(raw map[string]interface{}) (Params, error) {
	p := DefaultParams()
	metricSet := false
	disableDefault := false

	// deterministic order so the first error reported is stable
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if ignoredParams[key] {
			if key == "booster" || key == "boosting" || key == "boosting_type" {
				s, _ := value.(string)
				if s != "gbtree" && s != "gbdt" {
					return p, errors.NewValidationError(key, "only gbdt/gbtree boosting is supported", value)
				}
			}
			continue
		}
		canonical, ok := paramAliases[key]
		if !ok {
			return p, errors.NewValidationError(key, "unknown parameter", value)
		}

		var err error
		switch canonical {
		case "objective":
			var s string
			if s, err = toString(key, value); err == nil {
				obj, known := objectiveAliases[strings.ToLower(s)]
				if !known {
					return p, errors.NewValidationError(key, "unsupported objective", value)
				}
				p.Objective = obj
			}
		case "learning_rate":
			p.LearningRate, err = toFloat(key, value)
		case "num_leaves":
			p.NumLeaves, err = toInt(key, value)
		case "max_depth":
			p.MaxDepth, err = toInt(key, value)
		case "min_data_in_leaf":
			p.MinDataInLeaf, err = toInt(key, value)
		case "min_sum_hessian_in_leaf":
			p.MinSumHessianInLeaf, err = toFloat(key, value)
		case "lambda_l1":
			p.LambdaL1, err = toFloat(key, value)
		case "lambda_l2":
			p.LambdaL2, err = toFloat(key, value)
		case "min_gain_to_split":
			p.MinGainToSplit, err = toFloat(key, value)
		case "bagging_fraction":
			p.BaggingFraction, err = toFloat(key, value)
		case "bagging_freq":
			p.BaggingFreq, err = toInt(key, value)
		case "feature_fraction":
			p.FeatureFraction, err = toFloat(key, value)
		case "max_bin":
			p.MaxBin, err = toInt(key, value)
		case "huber_delta":
			p.HuberDelta, err = toFloat(key, value)
		case "fair_c":
			p.FairC, err = toFloat(key, value)
		case "quantile_alpha":
			p.QuantileAlpha, err = toFloat(key, value)
		case "metric":
			p.Metric, err = toMetricList(key, value)
			metricSet = true
		case "seed":
			var s int
			if s, err = toInt(key, value); err == nil {
				p.Seed = uint64(s)
			}
		case "num_threads":
			p.NumThreads, err = toInt(key, value)
		case "disable_default_eval_metric":
			disableDefault, err = toBool(key, value)
		}
		if err != nil {
			return p, err
		}
	}

	if !metricSet && !disableDefault {
		p.Metric = []string{defaultMetric(p.Objective)}
	}
	// XGBoost's subsample has no frequency knob and applies every round
	if p.BaggingFraction < 1 && p.BaggingFreq == 0 {
		p.BaggingFreq = 1
	}
	return p, p.Validate()
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.MinSumHessianInLeaf < 0:
		return errors.NewValidationError("min_sum_hessian_in_leaf", "must be non-negative", p.MinSumHessianInLeaf)
	case p.LambdaL1 < 0:
		return errors.NewValidationError("lambda_l1", "must be non-negative", p.LambdaL1)
	case p.LambdaL2 < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.LambdaL2)
	case p.MinGainToSplit < 0:
		return errors.NewValidationError("min_gain_to_split", "must be non-negative", p.MinGainToSplit)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return errors.NewValidationError("bagging_freq", "must be non-negative", p.BaggingFreq)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2 || p.MaxBin > 65534:
		return errors.NewValidationError("max_bin", "must be in [2, 65534]", p.MaxBin)
	case p.HuberDelta <= 0:
		return errors.NewValidationError("huber_delta", "must be positive", p.HuberDelta)
	case p.FairC <= 0:
		return errors.NewValidationError("fair_c", "must be positive", p.FairC)
	case p.QuantileAlpha <= 0 || p.QuantileAlpha >= 1:
		return errors.NewValidationError("quantile_alpha", "must be in (0, 1)", p.QuantileAlpha)
	}
	for _, m := range p.Metric {
		if _, err := newMetric(m); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(key, "expected a number", v)
}

func toInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, errors.NewValidationError(key, "expected an integer", v)
		}
		return int(x), nil
	}
	return 0, errors.NewValidationError(key, "expected an integer", v)
}

func toBool(key string, v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	}
	return false, errors.NewValidationError(key, "expected a boolean", v)
}

func toString(key string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(key, "expected a string", v)
}

func toMetricList(key string, v interface{}) ([]string, error) {
	var names []string
	switch x := v.(type) {
	case string:
		names = strings.Split(x, ",")
	case []string:
		names = x
	case []interface{}:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewValidationError(key, "expected metric names", v)
			}
			names = append(names, s)
		}
	default:
		return nil, errors.NewValidationError(key, "expected metric names", v)
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || n == "none" || n == "null" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (p Params) String() string {
	return fmt.Sprintf("objective=%s learning_rate=%g num_leaves=%d max_depth=%d min_data_in_leaf=%d lambda_l2=%g",
		p.Objective, p.LearningRate, p.NumLeaves, p.MaxDepth, p.MinDataInLeaf, p.LambdaL2)
}
