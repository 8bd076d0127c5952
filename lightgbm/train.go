package lightgbm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// FEval is a custom evaluation function. It receives raw predictions for every row of
// data and returns the metric name and value.
type FEval func(preds []float64, data *Dataset) (string, float64)

type trainConfig struct {
	validNames          []string
	earlyStoppingRounds int
	feval               FEval
	fevalMaximize       bool
	initModel           *Booster
	callbacks           []Callback
	logger              log.Logger
	verboseEval         int
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

// WithValidNames names the validation sets in evaluation results.
func WithValidNames(names ...string) TrainOption {
	return func(c *trainConfig) {
		c.validNames = names
	}
}

// WithEarlyStopping stops training when the last validation set's metric has not
// improved for rounds consecutive rounds. The metric is the custom FEval when one is
// set, otherwise the last builtin metric.
func WithEarlyStopping(rounds int) TrainOption {
	return func(c *trainConfig) {
		c.earlyStoppingRounds = rounds
	}
}

// WithFEval sets a custom evaluation function. maximize tells early stopping whether
// larger values are better.
func WithFEval(fn FEval, maximize bool) TrainOption {
	return func(c *trainConfig) {
		c.feval = fn
		c.fevalMaximize = maximize
	}
}

// WithInitModel continues boosting from the trees of model. The model is copied and
// left untouched.
func WithInitModel(model *Booster) TrainOption {
	return func(c *trainConfig) {
		c.initModel = model
	}
}

// WithCallbacks adds callbacks run after every round.
func WithCallbacks(callbacks ...Callback) TrainOption {
	return func(c *trainConfig) {
		c.callbacks = append(c.callbacks, callbacks...)
	}
}

// WithLogger overrides the logger used for training diagnostics.
func WithLogger(logger log.Logger) TrainOption {
	return func(c *trainConfig) {
		c.logger = logger
	}
}

// WithVerboseEval logs evaluation results every period rounds at debug level.
func WithVerboseEval(period int) TrainOption {
	return func(c *trainConfig) {
		c.verboseEval = period
	}
}

type evalSet struct {
	name   string
	data   *Dataset
	scores []float64
}

// Train boosts numBoostRound trees on trainSet and returns a new Booster.
//
// Every round evaluates the builtin metrics and the custom FEval on each of validSets.
// A validation set may be trainSet itself. With early stopping, training ends after the
// configured number of rounds without improvement on the last validation set; trees
// grown after the best round are kept, and BestIteration records the best one.
func Train(params map[string]interface{}, trainSet *Dataset, numBoostRound int, validSets []*Dataset, opts ...TrainOption) (booster *Booster, err error) {
	defer errors.Recover(&err, "lightgbm.Train")

	cfg := &trainConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("lightgbm.train")
	}

	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	if trainSet == nil || trainSet.NumData() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "lightgbm.Train: training set")
	}
	if numBoostRound < 0 {
		return nil, errors.NewValidationError("num_boost_round", "must be non-negative", numBoostRound)
	}
	if cfg.earlyStoppingRounds < 0 {
		return nil, errors.NewValidationError("early_stopping_rounds", "must be non-negative", cfg.earlyStoppingRounds)
	}
	if cfg.earlyStoppingRounds > 0 && len(validSets) == 0 {
		return nil, errors.NewValueError("lightgbm.Train", "early stopping requires at least one validation set")
	}
	if len(cfg.validNames) > 0 && len(cfg.validNames) != len(validSets) {
		return nil, errors.NewDimensionError("lightgbm.Train", len(validSets), len(cfg.validNames), 0)
	}
	for _, v := range validSets {
		if v == nil {
			return nil, errors.NewValueError("lightgbm.Train", "validation set is nil")
		}
		if v.NumFeature() != trainSet.NumFeature() {
			return nil, errors.NewDimensionError("lightgbm.Train", trainSet.NumFeature(), v.NumFeature(), 1)
		}
	}

	objective, err := CreateObjectiveFunction(p)
	if err != nil {
		return nil, err
	}
	metrics := make([]Metric, 0, len(p.Metric))
	for _, name := range p.Metric {
		m, err := newMetric(name)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}

	if cfg.initModel != nil {
		if cfg.initModel.numFeature != trainSet.NumFeature() {
			return nil, errors.NewDimensionError("lightgbm.Train", cfg.initModel.numFeature, trainSet.NumFeature(), 1)
		}
		booster = cfg.initModel.clone()
	} else {
		booster = newBooster(objective.GetInitScore(trainSet.label), trainSet.featureNames, p.Objective)
	}
	startTrees := booster.NumTrees()

	trainScores := make([]float64, trainSet.NumData())
	booster.addPredictions(trainSet.data, trainScores, 0, startTrees, true)
	sets := make([]*evalSet, len(validSets))
	for i, v := range validSets {
		name := fmt.Sprintf("valid_%d", i)
		if len(cfg.validNames) > 0 {
			name = cfg.validNames[i]
		}
		set := &evalSet{name: name, data: v}
		if v == trainSet {
			set.scores = trainScores
		} else {
			set.scores = make([]float64, v.NumData())
			booster.addPredictions(v.data, set.scores, 0, startTrees, true)
		}
		sets[i] = set
	}

	callbacks := cfg.callbacks
	if cfg.verboseEval > 0 {
		callbacks = append(callbacks, LogEvaluation(cfg.logger, cfg.verboseEval))
	}
	booster.evalHistory = make(map[string]map[string][]float64)
	callbacks = append(callbacks, RecordEvaluation(booster.evalHistory))

	binned := buildBinnedData(trainSet, p.MaxBin, p.NumThreads)
	gr := newGrower(binned, p)
	// seeded per call so a warm-started run is reproducible
	rng := rand.New(rand.NewPCG(p.Seed, uint64(startTrees)))

	n := trainSet.NumData()
	grad := make([]float64, n)
	hess := make([]float64, n)
	allRows := make([]int, n)
	for i := range allRows {
		allRows[i] = i
	}
	allFeatures := make([]int, trainSet.NumFeature())
	for j := range allFeatures {
		allFeatures[j] = j
	}

	es := newEarlyStopper(cfg.earlyStoppingRounds)
	rows := allRows
	began := time.Now()

	for round := 0; round < numBoostRound; round++ {
		iteration := startTrees + round

		for i := 0; i < n; i++ {
			grad[i] = objective.CalculateGradient(trainScores[i], trainSet.label[i])
			hess[i] = objective.CalculateHessian(trainScores[i], trainSet.label[i])
		}
		if err := errors.CheckNumericalStability("lightgbm.Train gradients", grad, iteration); err != nil {
			return nil, err
		}

		if p.BaggingFraction < 1 && p.BaggingFreq > 0 && round%p.BaggingFreq == 0 {
			rows = sampleRows(rng, n, p.BaggingFraction)
		}
		features := allFeatures
		if p.FeatureFraction < 1 {
			features = sampleFeatures(rng, len(allFeatures), p.FeatureFraction)
		}

		tree := gr.grow(grad, hess, rows, features)
		tree.ShrinkageRate = p.LearningRate
		booster.trees = append(booster.trees, tree)

		for i := 0; i < n; i++ {
			trainScores[i] += tree.Predict(trainSet.data.RawRowView(i))
		}
		for _, set := range sets {
			if set.data == trainSet {
				continue
			}
			for i := range set.scores {
				set.scores[i] += tree.Predict(set.data.data.RawRowView(i))
			}
		}

		results := evaluate(sets, metrics, cfg)
		env := &CallbackEnv{
			Booster:        booster,
			Iteration:      iteration,
			BeginIteration: startTrees,
			EndIteration:   startTrees + numBoostRound,
			EvalResults:    results,
			Elapsed:        time.Since(began),
		}
		for _, cb := range callbacks {
			if err := cb(env); err != nil {
				return nil, errors.Wrapf(err, "callback failed at iteration %d", iteration)
			}
		}

		if len(results) > 0 {
			last := results[len(results)-1]
			es.update(iteration, last)
		}
		if env.StopTraining {
			cfg.logger.Debug("Training stopped by callback", log.IterationKey, iteration)
			break
		}
		if es.shouldStop() {
			cfg.logger.Debug("Early stopping",
				log.IterationKey, iteration,
				log.BestIterationKey, es.bestIteration,
				"best_score", es.bestScore,
			)
			break
		}
	}

	if booster.NumTrees() == startTrees {
		// no new trees; keep the init model's best iteration
		return booster, nil
	}
	if cfg.earlyStoppingRounds > 0 {
		booster.bestIteration = es.bestIteration
		if booster.bestIteration < 0 {
			// nothing ever improved, fall back to the first round of this call
			booster.bestIteration = startTrees
		}
		booster.bestScore = es.bestScore
		booster.bestMetric = es.metric
	} else {
		booster.bestIteration = booster.NumTrees() - 1
		booster.bestScore = es.lastScore
		booster.bestMetric = es.metric
	}
	return booster, nil
}

func evaluate(sets []*evalSet, metrics []Metric, cfg *trainConfig) []EvalResult {
	results := make([]EvalResult, 0, len(sets)*(len(metrics)+1))
	for _, set := range sets {
		for _, m := range metrics {
			results = append(results, EvalResult{
				DataName:       set.name,
				MetricName:     m.Name(),
				Value:          m.Eval(set.scores, set.data.label),
				HigherIsBetter: m.HigherIsBetter(),
			})
		}
		if cfg.feval != nil {
			// the callback receives its own copy of the scores
			preds := append([]float64(nil), set.scores...)
			name, value := cfg.feval(preds, set.data)
			results = append(results, EvalResult{
				DataName:       set.name,
				MetricName:     name,
				Value:          value,
				HigherIsBetter: cfg.fevalMaximize,
			})
		}
	}
	return results
}

// earlyStopper tracks the best value of one metric across rounds.
type earlyStopper struct {
	rounds          int
	metric          string
	bestScore       float64
	bestIteration   int
	lastScore       float64
	roundsNoImprove int
}

func newEarlyStopper(rounds int) *earlyStopper {
	return &earlyStopper{
		rounds:        rounds,
		bestScore:     math.NaN(),
		bestIteration: -1,
		lastScore:     math.NaN(),
	}
}

func (e *earlyStopper) update(iteration int, r EvalResult) {
	e.metric = r.MetricName
	e.lastScore = r.Value
	if better(r.Value, e.bestScore, r.HigherIsBetter) {
		e.bestScore = r.Value
		e.bestIteration = iteration
		e.roundsNoImprove = 0
		return
	}
	e.roundsNoImprove++
}

func (e *earlyStopper) shouldStop() bool {
	return e.rounds > 0 && e.roundsNoImprove >= e.rounds
}

// sampleRows draws round(n*fraction) distinct rows and returns them in ascending order.
func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	k := int(math.Round(float64(n) * fraction))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	mark := make([]bool, n)
	for _, i := range perm {
		mark[i] = true
	}
	rows := make([]int, 0, k)
	for i, m := range mark {
		if m {
			rows = append(rows, i)
		}
	}
	return rows
}

func sampleFeatures(rng *rand.Rand, n int, fraction float64) []int {
	return sampleRows(rng, n, fraction)
}
