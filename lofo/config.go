package lofo

import (
	"maps"

	"github.com/YuminosukeSato/windlofo/lightgbm"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Config controls one importance computation.
type Config struct {
	// KFoldSplits is the number of forward-chaining folds per objective evaluation.
	KFoldSplits int `yaml:"kfold_splits" json:"kfold_splits"`
	// NumBoostRound caps the rounds added per fold.
	NumBoostRound int `yaml:"num_boost_round" json:"num_boost_round"`
	// EarlyStoppingRounds is the patience on the validation CAPE. 0 disables early stopping.
	EarlyStoppingRounds int `yaml:"early_stopping_rounds" json:"early_stopping_rounds"`
	// HoldoutFraction is the share of trailing rows reserved for scoring.
	HoldoutFraction float64 `yaml:"holdout_fraction" json:"holdout_fraction"`
	// Params are booster parameters in LightGBM or XGBoost spelling.
	Params map[string]interface{} `yaml:"params" json:"params"`
	// Workers evaluates that many excluded features concurrently.
	Workers int `yaml:"workers" json:"workers"`
	// Seed overrides the booster seed when Params does not set one.
	Seed uint64 `yaml:"seed" json:"seed"`
	// VerboseEval logs booster metrics every VerboseEval rounds. 0 is silent.
	VerboseEval int `yaml:"verbose_eval" json:"verbose_eval"`
}

// DefaultParams mirrors the XGBoost settings the CNR notebooks tuned: depth-6 trees,
// eta 0.3 and L2 regularization 1, with builtin metrics disabled so CAPE drives
// early stopping.
func DefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"objective":        "regression",
		"eta":              0.3,
		"max_depth":        6,
		"num_leaves":       63,
		"min_data_in_leaf": 1,
		"min_child_weight": 1.0,
		"lambda":           1.0,
		"metric":           "None",
	}
}

// DefaultConfig returns 5 folds, 40 rounds, patience 5 and a 1/8 holdout.
func DefaultConfig() Config {
	return Config{
		KFoldSplits:         5,
		NumBoostRound:       40,
		EarlyStoppingRounds: 5,
		HoldoutFraction:     0.125,
		Params:              DefaultParams(),
		Workers:             1,
	}
}

// Validate checks the configuration, including the booster parameters.
func (c Config) Validate() error {
	if c.KFoldSplits < 2 {
		return errors.NewValidationError("kfold_splits", "must be at least 2", c.KFoldSplits)
	}
	if c.NumBoostRound < 1 {
		return errors.NewValidationError("num_boost_round", "must be positive", c.NumBoostRound)
	}
	if c.EarlyStoppingRounds < 0 {
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", c.EarlyStoppingRounds)
	}
	if !(c.HoldoutFraction > 0 && c.HoldoutFraction < 1) {
		return errors.NewValidationError("holdout_fraction", "must be in (0, 1)", c.HoldoutFraction)
	}
	if c.Workers < 0 {
		return errors.NewValidationError("workers", "must be non-negative", c.Workers)
	}
	if c.VerboseEval < 0 {
		return errors.NewValidationError("verbose_eval", "must be non-negative", c.VerboseEval)
	}
	p, err := lightgbm.ParseParams(c.boosterParams())
	if err != nil {
		return err
	}
	return p.Validate()
}

// boosterParams returns a copy of Params with the seed filled in.
func (c Config) boosterParams() map[string]interface{} {
	params := DefaultParams()
	if c.Params != nil {
		params = maps.Clone(c.Params)
	}
	if _, ok := params["seed"]; !ok && c.Seed != 0 {
		params["seed"] = c.Seed
	}
	return params
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
