package lofo

import (
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/windlofo/core/model"
	"github.com/YuminosukeSato/windlofo/lightgbm"
	"github.com/YuminosukeSato/windlofo/metrics"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// Session owns the booster of one objective evaluation. The first Extend trains from
// scratch; every later Extend continues boosting the same model on the next fold.
// A Session must not be shared between evaluations of different feature sets.
type Session struct {
	cfg      Config
	params   map[string]interface{}
	booster  *lightgbm.Booster
	state    *model.StateManager
	logger   log.Logger
	extended int
}

// NewSession creates an empty session.
func NewSession(cfg Config, logger log.Logger) *Session {
	if logger == nil {
		logger = log.GetLoggerWithName("lofo.session")
	}
	return &Session{
		cfg:    cfg,
		params: cfg.boosterParams(),
		state:  model.NewStateManager(),
		logger: logger,
	}
}

// Extend boosts up to NumBoostRound more rounds on train, watching CAPE on [train, valid]
// and stopping early on valid.
func (s *Session) Extend(train, valid *lightgbm.Dataset) (err error) {
	defer errors.Recover(&err, "Session.Extend")

	if floats.Sum(valid.GetLabel()) < 0 {
		s.logger.Warn("Validation target sums below zero, CAPE early stopping is unreliable on this fold",
			log.ValidRowsKey, valid.NumData(),
			log.NumTreesKey, s.trees(),
		)
	}

	opts := []lightgbm.TrainOption{
		lightgbm.WithValidNames("train", "eval"),
		lightgbm.WithFEval(metrics.CAPEEval, metrics.CAPEHigherIsBetter),
		lightgbm.WithEarlyStopping(s.cfg.EarlyStoppingRounds),
		lightgbm.WithLogger(s.logger),
		lightgbm.WithVerboseEval(s.cfg.VerboseEval),
	}
	if s.state.IsFitted() {
		opts = append(opts, lightgbm.WithInitModel(s.booster))
	}
	booster, err := lightgbm.Train(s.params, train, s.cfg.NumBoostRound, []*lightgbm.Dataset{train, valid}, opts...)
	if err != nil {
		kind := "train"
		if s.state.IsFitted() {
			kind = "warm start"
		}
		return errors.NewModelError("Session.Extend", kind, err)
	}
	s.booster = booster
	s.extended++
	s.state.SetDimensions(train.NumFeature(), train.NumData())
	s.state.SetFitted()
	return nil
}

// PredictBest predicts d with the trees up to the best iteration.
func (s *Session) PredictBest(d *lightgbm.Dataset) ([]float64, error) {
	if err := s.state.RequireFitted("Session", "PredictBest"); err != nil {
		return nil, err
	}
	return s.booster.PredictDataset(d, s.booster.BestIteration()+1)
}

func (s *Session) trees() int {
	if s.booster == nil {
		return 0
	}
	return s.booster.NumTrees()
}

// Booster returns the current model, or nil before the first Extend.
func (s *Session) Booster() *lightgbm.Booster {
	return s.booster
}

// Folds returns how many times Extend succeeded.
func (s *Session) Folds() int {
	return s.extended
}
