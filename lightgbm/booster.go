package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Booster is a trained tree ensemble.
type Booster struct {
	trees        []Tree
	initScore    float64
	numFeature   int
	featureNames []string
	objective    string

	bestIteration int
	bestScore     float64
	bestMetric    string

	// evaluation history of the most recent Train call, keyed by data name then metric
	evalHistory map[string]map[string][]float64
}

func newBooster(initScore float64, featureNames []string, objective string) *Booster {
	return &Booster{
		initScore:     initScore,
		numFeature:    len(featureNames),
		featureNames:  append([]string(nil), featureNames...),
		objective:     objective,
		bestIteration: -1,
		bestScore:     math.NaN(),
	}
}

// NumTrees returns the number of trees in the ensemble.
func (b *Booster) NumTrees() int {
	return len(b.trees)
}

// NumFeature returns the number of features the booster was trained on.
func (b *Booster) NumFeature() int {
	return b.numFeature
}

// FeatureNames returns a copy of the training feature names.
func (b *Booster) FeatureNames() []string {
	return append([]string(nil), b.featureNames...)
}

// InitScore returns the constant the ensemble starts from.
func (b *Booster) InitScore() float64 {
	return b.initScore
}

// BestIteration returns the zero-based absolute index of the best tree, or -1 for an
// empty booster. Without early stopping it is the last tree.
func (b *Booster) BestIteration() int {
	return b.bestIteration
}

// BestScore returns the early stopping metric value at BestIteration. It is NaN when
// no metric was evaluated.
func (b *Booster) BestScore() float64 {
	return b.bestScore
}

// BestMetric names the metric BestScore refers to.
func (b *Booster) BestMetric() string {
	return b.bestMetric
}

// EvalHistory returns per-round metric values of the most recent Train call.
func (b *Booster) EvalHistory() map[string]map[string][]float64 {
	out := make(map[string]map[string][]float64, len(b.evalHistory))
	for data, metrics := range b.evalHistory {
		out[data] = make(map[string][]float64, len(metrics))
		for name, values := range metrics {
			out[data][name] = append([]float64(nil), values...)
		}
	}
	return out
}

// Trees returns the trees of the ensemble. They must not be modified.
func (b *Booster) Trees() []Tree {
	return b.trees
}

// Predict returns predictions using the first numIteration trees. numIteration <= 0 or
// larger than NumTrees uses every tree.
func (b *Booster) Predict(X mat.Matrix, numIteration int) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != b.numFeature {
		return nil, errors.NewDimensionError("Booster.Predict", b.numFeature, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewValueError("Booster.Predict", "input has no rows")
	}
	n := b.treeLimit(numIteration)

	out := make([]float64, rows)
	b.addPredictions(X, out, 0, n, true)
	if err := errors.CheckNumericalStability("Booster.Predict", out, n); err != nil {
		return nil, err
	}
	return out, nil
}

// PredictBest predicts with trees up to and including BestIteration.
func (b *Booster) PredictBest(X mat.Matrix) ([]float64, error) {
	return b.Predict(X, b.bestIteration+1)
}

// PredictDataset is Predict on a Dataset's matrix.
func (b *Booster) PredictDataset(d *Dataset, numIteration int) ([]float64, error) {
	return b.Predict(d.data, numIteration)
}

func (b *Booster) treeLimit(numIteration int) int {
	if numIteration <= 0 || numIteration > len(b.trees) {
		return len(b.trees)
	}
	return numIteration
}

// addPredictions adds the outputs of trees [from, to) to out. With withInit the init
// score is written first.
func (b *Booster) addPredictions(X mat.Matrix, out []float64, from, to int, withInit bool) {
	rows, cols := X.Dims()
	dense, isDense := X.(*mat.Dense)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		if isDense {
			row = dense.RawRowView(i)
		} else {
			for j := 0; j < cols; j++ {
				row[j] = X.At(i, j)
			}
		}
		if withInit {
			out[i] = b.initScore
		}
		for t := from; t < to; t++ {
			out[i] += b.trees[t].Predict(row)
		}
	}
}

// ImportanceType selects how FeatureImportance aggregates trees.
type ImportanceType string

const (
	// ImportanceSplit counts how often a feature is used to split.
	ImportanceSplit ImportanceType = "split"
	// ImportanceGain sums the split gains of a feature.
	ImportanceGain ImportanceType = "gain"
)

// FeatureImportance returns one value per feature, in training column order.
func (b *Booster) FeatureImportance(kind ImportanceType) ([]float64, error) {
	if kind != ImportanceSplit && kind != ImportanceGain {
		return nil, errors.NewValidationError("importance_type", "must be split or gain", kind)
	}
	out := make([]float64, b.numFeature)
	for t := range b.trees {
		for _, node := range b.trees[t].Nodes {
			if node.NodeType != InternalNode {
				continue
			}
			if kind == ImportanceSplit {
				out[node.SplitFeature]++
			} else {
				out[node.SplitFeature] += node.Gain
			}
		}
	}
	return out, nil
}

// clone returns a deep copy so continued training never touches the original.
func (b *Booster) clone() *Booster {
	c := &Booster{
		trees:         make([]Tree, len(b.trees)),
		initScore:     b.initScore,
		numFeature:    b.numFeature,
		featureNames:  append([]string(nil), b.featureNames...),
		objective:     b.objective,
		bestIteration: b.bestIteration,
		bestScore:     b.bestScore,
		bestMetric:    b.bestMetric,
	}
	for i := range b.trees {
		c.trees[i] = b.trees[i].clone()
	}
	return c
}
