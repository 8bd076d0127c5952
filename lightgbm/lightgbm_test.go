package lightgbm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// makeRegression returns y = 3*x0 + step(x1) + small noise, with x2 pure noise.
func makeRegression(t *testing.T, n int, seed uint64) (*mat.Dense, []float64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		x1 := rng.Float64()
		x2 := rng.Float64()
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		X.Set(i, 2, x2)
		step := 0.0
		if x1 > 0.5 {
			step = 2
		}
		y[i] = 3*x0 + step + 0.01*rng.NormFloat64()
	}
	return X, y
}

func testParams() map[string]interface{} {
	return map[string]interface{}{
		"objective":        "regression",
		"learning_rate":    0.3,
		"num_leaves":       15,
		"min_data_in_leaf": 5,
		"seed":             7,
	}
}

func mustDataset(t *testing.T, X *mat.Dense, y []float64) *Dataset {
	t.Helper()
	d, err := NewDataset(X, y, WithFeatureNames([]string{"x0", "x1", "x2"}))
	require.NoError(t, err)
	return d
}

func TestNewDataset(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, math.NaN()})

	t.Run("valid", func(t *testing.T) {
		d, err := NewDataset(X, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 3, d.NumData())
		assert.Equal(t, 2, d.NumFeature())
		assert.Equal(t, []string{"Column_0", "Column_1"}, d.FeatureNames())
	})

	t.Run("label length mismatch", func(t *testing.T) {
		_, err := NewDataset(X, []float64{1, 2})
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("non finite label", func(t *testing.T) {
		_, err := NewDataset(X, []float64{1, math.NaN(), 3})
		assert.Error(t, err)
	})

	t.Run("feature name count", func(t *testing.T) {
		_, err := NewDataset(X, []float64{1, 2, 3}, WithFeatureNames([]string{"a"}))
		assert.Error(t, err)
	})
}

func TestParseParams(t *testing.T) {
	t.Run("xgboost aliases", func(t *testing.T) {
		p, err := ParseParams(map[string]interface{}{
			"objective":        "reg:squarederror",
			"eta":              0.3,
			"max_depth":        6,
			"min_child_weight": 1,
			"lambda":           1.0,
			"subsample":        0.8,
			"colsample_bytree": 0.5,
			"gamma":            0.1,
			"tree_method":      "gpu_hist",
		})
		require.NoError(t, err)
		assert.Equal(t, "regression", p.Objective)
		assert.Equal(t, 0.3, p.LearningRate)
		assert.Equal(t, 6, p.MaxDepth)
		assert.Equal(t, 1.0, p.MinSumHessianInLeaf)
		assert.Equal(t, 1.0, p.LambdaL2)
		assert.Equal(t, 0.8, p.BaggingFraction)
		assert.Equal(t, 1, p.BaggingFreq)
		assert.Equal(t, 0.5, p.FeatureFraction)
		assert.Equal(t, 0.1, p.MinGainToSplit)
		assert.Equal(t, []string{"l2"}, p.Metric)
	})

	t.Run("disable default metric", func(t *testing.T) {
		p, err := ParseParams(map[string]interface{}{"disable_default_eval_metric": true})
		require.NoError(t, err)
		assert.Empty(t, p.Metric)

		p, err = ParseParams(map[string]interface{}{"metric": "None"})
		require.NoError(t, err)
		assert.Empty(t, p.Metric)
	})

	tests := []struct {
		name  string
		input map[string]interface{}
		param string
	}{
		{"unknown key", map[string]interface{}{"num_trees_per_round": 2}, "num_trees_per_round"},
		{"wrong type", map[string]interface{}{"learning_rate": "fast"}, "learning_rate"},
		{"non integer", map[string]interface{}{"num_leaves": 3.5}, "num_leaves"},
		{"out of range", map[string]interface{}{"feature_fraction": 1.5}, "feature_fraction"},
		{"unsupported objective", map[string]interface{}{"objective": "binary"}, "objective"},
		{"unsupported booster", map[string]interface{}{"booster": "gblinear"}, "booster"},
		{"unsupported metric", map[string]interface{}{"metric": "auc"}, "metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.input)
			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}
}

func TestBinMapper(t *testing.T) {
	t.Run("few distinct values", func(t *testing.T) {
		m := newBinMapper([]float64{3, 1, 2, 2, math.NaN()}, 255)
		assert.Equal(t, []float64{1.5, 2.5}, m.upperBounds)
		assert.Equal(t, 0, m.valueToBin(1))
		assert.Equal(t, 1, m.valueToBin(2))
		assert.Equal(t, 2, m.valueToBin(3))
		assert.Equal(t, 2, m.valueToBin(100))
		assert.Equal(t, m.nanBin(), m.valueToBin(math.NaN()))
	})

	t.Run("capped at max bin", func(t *testing.T) {
		values := make([]float64, 1000)
		for i := range values {
			values[i] = float64(i)
		}
		m := newBinMapper(values, 16)
		assert.LessOrEqual(t, len(m.upperBounds), 15)
		assert.GreaterOrEqual(t, len(m.upperBounds), 10)
		assert.IsIncreasing(t, m.upperBounds)
	})

	t.Run("all missing", func(t *testing.T) {
		m := newBinMapper([]float64{math.NaN(), math.NaN()}, 255)
		assert.Empty(t, m.upperBounds)
		assert.Equal(t, 1, m.valueToBin(math.NaN()))
	})
}

func TestTrain(t *testing.T) {
	X, y := makeRegression(t, 400, 1)
	train := mustDataset(t, X, y)

	booster, err := Train(testParams(), train, 30, []*Dataset{train}, WithValidNames("train"))
	require.NoError(t, err)
	assert.Equal(t, 30, booster.NumTrees())
	assert.Equal(t, 29, booster.BestIteration())
	assert.Equal(t, "l2", booster.BestMetric())

	history := booster.EvalHistory()
	l2 := history["train"]["l2"]
	require.Len(t, l2, 30)
	assert.Less(t, l2[29], l2[0])
	assert.Less(t, l2[29], 0.05)
	assert.InDelta(t, booster.BestScore(), l2[29], 1e-12)

	preds, err := booster.Predict(X, 0)
	require.NoError(t, err)
	assert.Len(t, preds, 400)

	t.Run("fewer trees predict differently", func(t *testing.T) {
		first, err := booster.Predict(X, 1)
		require.NoError(t, err)
		assert.NotEqual(t, preds, first)
	})

	t.Run("wrong feature count", func(t *testing.T) {
		_, err := booster.Predict(mat.NewDense(2, 2, nil), 0)
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("importance favours informative features", func(t *testing.T) {
		gain, err := booster.FeatureImportance(ImportanceGain)
		require.NoError(t, err)
		assert.Greater(t, gain[0], gain[2])
		assert.Greater(t, gain[1], gain[2])

		_, err = booster.FeatureImportance("cover")
		assert.Error(t, err)
	})

	t.Run("trees respect num_leaves and max_depth", func(t *testing.T) {
		params := testParams()
		params["max_depth"] = 2
		b, err := Train(params, train, 3, nil)
		require.NoError(t, err)
		for _, tree := range b.Trees() {
			assert.LessOrEqual(t, tree.NumLeaves, 4)
			assert.LessOrEqual(t, tree.Depth(), 2)
		}
	})
}

func TestTrainValidation(t *testing.T) {
	X, y := makeRegression(t, 50, 2)
	train := mustDataset(t, X, y)

	_, err := Train(testParams(), nil, 5, nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = Train(testParams(), train, 5, nil, WithEarlyStopping(2))
	assert.Error(t, err)

	_, err = Train(testParams(), train, 5, []*Dataset{train}, WithValidNames("a", "b"))
	assert.Error(t, err)

	other, err := NewDataset(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), []float64{1, 2})
	require.NoError(t, err)
	_, err = Train(testParams(), train, 5, []*Dataset{other})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = Train(testParams(), train, 5, nil, WithInitModel(newBooster(0, []string{"a"}, "regression")))
	assert.True(t, errors.As(err, &dimErr))
}

func TestEarlyStopping(t *testing.T) {
	X, y := makeRegression(t, 200, 3)
	train := mustDataset(t, X, y)
	valid := mustDataset(t, X, y)

	t.Run("stops after patience without improvement", func(t *testing.T) {
		constant := func(preds []float64, data *Dataset) (string, float64) { return "const", 1.0 }
		b, err := Train(testParams(), train, 40, []*Dataset{train, valid},
			WithValidNames("train", "eval"),
			WithFEval(constant, false),
			WithEarlyStopping(3),
		)
		require.NoError(t, err)
		assert.Equal(t, 4, b.NumTrees())
		assert.Equal(t, 0, b.BestIteration())
		assert.Equal(t, "const", b.BestMetric())
		assert.Equal(t, 1.0, b.BestScore())
	})

	t.Run("NaN never counts as improvement", func(t *testing.T) {
		undefined := func(preds []float64, data *Dataset) (string, float64) { return "nan", math.NaN() }
		b, err := Train(testParams(), train, 40, []*Dataset{valid},
			WithFEval(undefined, false),
			WithEarlyStopping(3),
		)
		require.NoError(t, err)
		assert.Equal(t, 3, b.NumTrees())
		assert.Equal(t, 0, b.BestIteration())
		assert.True(t, math.IsNaN(b.BestScore()))
	})

	t.Run("keeps improving metric to the end", func(t *testing.T) {
		b, err := Train(testParams(), train, 10, []*Dataset{valid}, WithEarlyStopping(3))
		require.NoError(t, err)
		assert.Equal(t, 10, b.NumTrees())
		assert.Equal(t, 9, b.BestIteration())
	})

	t.Run("feval receives every row", func(t *testing.T) {
		var sizes []int
		fixed := func(preds []float64, data *Dataset) (string, float64) {
			sizes = append(sizes, len(preds))
			assert.Equal(t, data.NumData(), len(preds))
			return "fixed", 0
		}
		_, err := Train(testParams(), train, 2, []*Dataset{valid}, WithFEval(fixed, false))
		require.NoError(t, err)
		assert.Equal(t, []int{200, 200}, sizes)
	})
}

func TestWarmStart(t *testing.T) {
	X, y := makeRegression(t, 300, 4)
	train := mustDataset(t, X, y)

	first, err := Train(testParams(), train, 5, []*Dataset{train})
	require.NoError(t, err)
	firstPreds, err := first.Predict(X, 0)
	require.NoError(t, err)

	constant := func(preds []float64, data *Dataset) (string, float64) { return "const", 1.0 }
	second, err := Train(testParams(), train, 5, []*Dataset{train},
		WithInitModel(first),
		WithFEval(constant, false),
		WithEarlyStopping(10),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, first.NumTrees(), "init model must not change")
	assert.Equal(t, 10, second.NumTrees())
	assert.Equal(t, 5, second.BestIteration(), "best iteration is an absolute tree index")
	assert.Equal(t, first.InitScore(), second.InitScore())

	// the first five trees are shared
	prefix, err := second.Predict(X, 5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, firstPreds, prefix, 1e-12)

	best, err := second.PredictBest(X)
	require.NoError(t, err)
	six, err := second.Predict(X, 6)
	require.NoError(t, err)
	assert.Equal(t, six, best)

	again, err := first.Predict(X, 0)
	require.NoError(t, err)
	assert.Equal(t, firstPreds, again)
}

func TestDeterminism(t *testing.T) {
	X, y := makeRegression(t, 300, 5)
	train := mustDataset(t, X, y)
	params := testParams()
	params["bagging_fraction"] = 0.7
	params["bagging_freq"] = 1
	params["feature_fraction"] = 0.67

	a, err := Train(params, train, 10, nil)
	require.NoError(t, err)
	b, err := Train(params, train, 10, nil)
	require.NoError(t, err)

	pa, err := a.Predict(X, 0)
	require.NoError(t, err)
	pb, err := b.Predict(X, 0)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	params["seed"] = 8
	c, err := Train(params, train, 10, nil)
	require.NoError(t, err)
	pc, err := c.Predict(X, 0)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pc)
}

func TestObjectives(t *testing.T) {
	targets := []float64{1, 2, 3, 10}

	assert.InDelta(t, 4.0, L2Objective{}.GetInitScore(targets), 1e-12)
	assert.InDelta(t, 2.5, L1Objective{}.GetInitScore(targets), 1e-12)

	h := HuberObjective{Delta: 1}
	assert.Equal(t, 0.5, h.CalculateGradient(1.5, 1))
	assert.Equal(t, 1.0, h.CalculateGradient(5, 1))
	assert.Equal(t, -1.0, h.CalculateGradient(-5, 1))

	f := FairObjective{C: 1}
	assert.InDelta(t, 0.5, f.CalculateGradient(2, 1), 1e-12)
	assert.InDelta(t, 0.25, f.CalculateHessian(2, 1), 1e-12)

	q := QuantileObjective{Alpha: 0.9}
	assert.InDelta(t, 0.9, q.CalculateLoss(0, 1), 1e-12)
	assert.InDelta(t, 0.1, q.CalculateLoss(1, 0), 1e-12)

	for _, name := range []string{"regression_l1", "huber", "fair", "quantile"} {
		t.Run(name, func(t *testing.T) {
			X, y := makeRegression(t, 200, 6)
			params := testParams()
			params["objective"] = name
			params["metric"] = "l1"
			b, err := Train(params, mustDataset(t, X, y), 20, []*Dataset{mustDataset(t, X, y)})
			require.NoError(t, err)
			l1 := b.EvalHistory()["valid_0"]["l1"]
			require.Len(t, l1, 20)
			assert.Less(t, l1[19], l1[0])
		})
	}
}

func TestCallbacks(t *testing.T) {
	X, y := makeRegression(t, 100, 9)
	train := mustDataset(t, X, y)

	history := map[string]map[string][]float64{}
	stopAt := func(env *CallbackEnv) error {
		if env.Iteration == 2 {
			env.StopTraining = true
		}
		return nil
	}
	b, err := Train(testParams(), train, 10, []*Dataset{train},
		WithValidNames("train"),
		WithCallbacks(RecordEvaluation(history), stopAt),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, b.NumTrees())
	assert.Len(t, history["train"]["l2"], 3)

	b, err = Train(testParams(), train, 10, nil, WithCallbacks(TimeLimit(0)))
	require.NoError(t, err)
	assert.Equal(t, 1, b.NumTrees(), "an exhausted budget stops after the first round")
}

func TestMissingValuesGoRight(t *testing.T) {
	tree := Tree{
		ShrinkageRate: 1,
		Nodes: []Node{
			{NodeID: 0, ParentID: -1, NodeType: InternalNode, SplitFeature: 0, Threshold: 0.5, LeftChild: 1, RightChild: 2},
			{NodeID: 1, ParentID: 0, NodeType: LeafNode, LeafValue: -1},
			{NodeID: 2, ParentID: 0, NodeType: LeafNode, LeafValue: 1},
		},
	}
	assert.Equal(t, -1.0, tree.Predict([]float64{0.5}))
	assert.Equal(t, 1.0, tree.Predict([]float64{0.6}))
	assert.Equal(t, 1.0, tree.Predict([]float64{math.NaN()}))
}
