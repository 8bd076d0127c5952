package lofo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/metrics"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// FoldReport summarizes training on one fold.
type FoldReport struct {
	Fold          int           `json:"fold"`
	TrainRows     int           `json:"train_rows"`
	ValidRows     int           `json:"valid_rows"`
	NumTrees      int           `json:"num_trees"`
	BestIteration int           `json:"best_iteration"`
	BestScore     float64       `json:"best_score"`
	Duration      time.Duration `json:"duration_ns"`
}

// Evaluation is the result of one objective evaluation.
type Evaluation struct {
	// FeatureOut is the excluded feature, empty for the baseline.
	FeatureOut string `json:"feature_out"`
	// Score is CAPE on the holdout rows.
	Score float64 `json:"score"`
	// HoldoutStart is the first holdout row of the evaluated table.
	HoldoutStart int                 `json:"holdout_start"`
	HoldoutRows  int                 `json:"holdout_rows"`
	Folds        []FoldReport        `json:"folds"`
	Diagnostics  metrics.Diagnostics `json:"diagnostics"`
	// Predictions are the holdout predictions, in the target's scale.
	Predictions []float64     `json:"-"`
	Duration    time.Duration `json:"duration_ns"`
}

// Objective trains a warm-started booster across forward-chaining folds and scores it on
// a trailing holdout.
type Objective struct {
	cfg      Config
	splitter *TimeSeriesSplit
	logger   log.Logger
}

// Option configures an Objective or Aggregator.
type Option func(*options)

type options struct {
	logger log.Logger
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName(component)
	}
	return o
}

// NewObjective validates cfg and returns an Objective.
func NewObjective(cfg Config, opts ...Option) (*Objective, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions("lofo.objective", opts)
	return &Objective{
		cfg:      cfg,
		splitter: NewTimeSeriesSplit(cfg.KFoldSplits),
		logger:   o.logger,
	}, nil
}

// Config returns the configuration.
func (o *Objective) Config() Config {
	return o.cfg
}

// Evaluate scores the model trained on features minus featureOut. Inputs are checked
// before any training. Every failure is an EvaluationError naming featureOut and the
// fold that was running, or errors.NoFold outside the fold loop.
func (o *Objective) Evaluate(ctx context.Context, table *frame.Table, target frame.Series, features []string, featureOut string) (*Evaluation, error) {
	ev, fold, err := o.evaluate(ctx, table, target, features, featureOut)
	if err != nil {
		return nil, errors.NewEvaluationError(featureOut, fold, err)
	}
	return ev, nil
}

func (o *Objective) evaluate(ctx context.Context, table *frame.Table, target frame.Series, features []string, featureOut string) (_ *Evaluation, fold int, err error) {
	fold = errors.NoFold
	defer errors.Recover(&err, "Objective.Evaluate")
	began := time.Now()

	y, err := o.validate(table, target, features, featureOut)
	if err != nil {
		return nil, fold, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fold, err
	}

	n := table.Len()
	holdout := HoldoutSize(n, o.cfg.HoldoutFraction)
	if holdout < 1 {
		return nil, fold, errors.NewInsufficientDataError("Objective.Evaluate", n, 1, fmt.Sprintf("holdout fraction %g leaves no holdout rows", o.cfg.HoldoutFraction))
	}
	work := n - holdout
	folds, err := o.splitter.Split(work)
	if err != nil {
		return nil, fold, err
	}

	holdoutTable, err := table.Slice(work, n)
	if err != nil {
		return nil, fold, err
	}
	holdoutSet, err := BuildDataset(holdoutTable, y[work:], features, featureOut)
	if err != nil {
		return nil, fold, err
	}

	logger := o.logger.With(log.FeatureOutKey, featureOut)
	session := NewSession(o.cfg, logger)
	ev := &Evaluation{FeatureOut: featureOut, HoldoutStart: work, HoldoutRows: holdout}

	for _, f := range folds {
		fold = f.Index
		if err := ctx.Err(); err != nil {
			return nil, fold, err
		}
		foldBegan := time.Now()
		trainTable, err := table.Slice(0, f.TrainEnd)
		if err != nil {
			return nil, fold, err
		}
		validTable, err := table.Slice(f.TrainEnd, f.ValidEnd)
		if err != nil {
			return nil, fold, err
		}
		trainSet, err := BuildDataset(trainTable, y[:f.TrainEnd], features, featureOut)
		if err != nil {
			return nil, fold, err
		}
		validSet, err := BuildDataset(validTable, y[f.TrainEnd:f.ValidEnd], features, featureOut)
		if err != nil {
			return nil, fold, err
		}
		if err := session.Extend(trainSet, validSet); err != nil {
			return nil, fold, err
		}

		b := session.Booster()
		report := FoldReport{
			Fold:          f.Index,
			TrainRows:     f.TrainEnd,
			ValidRows:     f.ValidEnd - f.TrainEnd,
			NumTrees:      b.NumTrees(),
			BestIteration: b.BestIteration(),
			BestScore:     b.BestScore(),
			Duration:      time.Since(foldBegan),
		}
		ev.Folds = append(ev.Folds, report)
		logger.Debug("Fold trained",
			log.FoldKey, f.Index,
			log.TrainRowsKey, report.TrainRows,
			log.ValidRowsKey, report.ValidRows,
			log.NumTreesKey, report.NumTrees,
			log.BestIterationKey, report.BestIteration,
			log.CAPEKey, report.BestScore,
		)
	}
	fold = errors.NoFold

	preds, err := session.PredictBest(holdoutSet)
	if err != nil {
		return nil, fold, err
	}
	truth := holdoutSet.GetLabel()
	score, err := metrics.CAPE(truth, preds)
	if err != nil {
		return nil, fold, err
	}
	if err := errors.CheckScalar("Objective.Evaluate holdout CAPE", score, session.Booster().BestIteration()); err != nil {
		return nil, fold, err
	}
	diag, err := metrics.Diagnose(truth, preds)
	if err != nil {
		return nil, fold, err
	}

	ev.Score = score
	ev.Predictions = preds
	ev.Diagnostics = diag
	ev.Duration = time.Since(began)
	logger.Debug("Holdout scored",
		log.PhaseKey, log.PhaseHoldout,
		log.HoldoutRowsKey, holdout,
		log.CAPEKey, score,
		log.DurationMsKey, ev.Duration.Milliseconds(),
	)
	return ev, fold, nil
}

// validate checks everything that can be checked without training and returns the
// target aligned with table rows.
func (o *Objective) validate(table *frame.Table, target frame.Series, features []string, featureOut string) ([]float64, error) {
	if table == nil {
		return nil, errors.NewValueError("Objective.Evaluate", "table is nil")
	}
	if len(features) == 0 {
		return nil, errors.NewSchemaError("Objective.Evaluate", "", "feature set is empty")
	}
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if seen[f] {
			return nil, errors.NewSchemaError("Objective.Evaluate", f, "duplicate feature")
		}
		seen[f] = true
		if !table.HasColumn(f) {
			return nil, errors.NewSchemaError("Objective.Evaluate", f, "feature not in table")
		}
	}
	active, err := ActiveFeatures(features, featureOut)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, errors.NewSchemaError("Objective.Evaluate", featureOut, "no features left after exclusion")
	}
	y, err := table.Align(target)
	if err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewDomainError("Objective.Evaluate", i, v, "target must be finite")
		}
	}
	return y, nil
}
