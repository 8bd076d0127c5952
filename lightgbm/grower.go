package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/windlofo/core/parallel"
)

const kEpsilon = 1e-15

type histBin struct {
	sumGrad float64
	sumHess float64
	count   int
}

// SplitInfo describes the best split found for a leaf.
type SplitInfo struct {
	Feature    int
	Bin        int
	Threshold  float64
	Gain       float64
	LeftGrad   float64
	LeftHess   float64
	LeftCount  int
	RightGrad  float64
	RightHess  float64
	RightCount int
}

type leafCandidate struct {
	node  int
	rows  []int
	grad  float64
	hess  float64
	depth int
	hist  [][]histBin
	split SplitInfo
	ok    bool
}

// grower builds one tree leaf-wise: at every step the leaf with the largest split gain
// is split, until num_leaves is reached or no split improves the loss.
type grower struct {
	data    *binnedData
	params  Params
	workers int
}

func newGrower(data *binnedData, params Params) *grower {
	return &grower{data: data, params: params, workers: params.NumThreads}
}

func (g *grower) grow(grad, hess []float64, rows, features []int) Tree {
	var sumG, sumH float64
	for _, r := range rows {
		sumG += grad[r]
		sumH += hess[r]
	}

	tree := Tree{Nodes: []Node{{
		NodeID:     0,
		ParentID:   -1,
		LeftChild:  -1,
		RightChild: -1,
		NodeType:   LeafNode,
		LeafValue:  g.leafOutput(sumG, sumH),
		DataCount:  len(rows),
		SumHessian: sumH,
	}}}

	root := &leafCandidate{node: 0, rows: rows, grad: sumG, hess: sumH}
	root.hist = g.buildHistogram(grad, hess, rows, features)
	g.evaluate(root, features)

	leaves := []*leafCandidate{root}
	numLeaves := 1
	for numLeaves < g.params.NumLeaves {
		bestIdx := -1
		for i, leaf := range leaves {
			if !leaf.ok {
				continue
			}
			if bestIdx < 0 || leaf.split.Gain > leaves[bestIdx].split.Gain {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		parent := leaves[bestIdx]
		left, right := g.split(&tree, parent, grad, hess, features)
		leaves[bestIdx] = left
		leaves = append(leaves, right)
		numLeaves++
	}

	tree.NumLeaves = numLeaves
	return tree
}

// split turns parent's node into an internal node and returns the two new leaves.
func (g *grower) split(tree *Tree, parent *leafCandidate, grad, hess []float64, features []int) (*leafCandidate, *leafCandidate) {
	s := parent.split
	column := g.data.bins[s.Feature]

	leftRows := make([]int, 0, s.LeftCount)
	rightRows := make([]int, 0, s.RightCount)
	for _, r := range parent.rows {
		if int(column[r]) <= s.Bin {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}

	depth := parent.depth + 1
	leftID := len(tree.Nodes)
	rightID := leftID + 1
	tree.Nodes = append(tree.Nodes,
		Node{
			NodeID: leftID, ParentID: parent.node, LeftChild: -1, RightChild: -1,
			NodeType: LeafNode, LeafValue: g.leafOutput(s.LeftGrad, s.LeftHess),
			DataCount: len(leftRows), SumHessian: s.LeftHess, Depth: depth,
		},
		Node{
			NodeID: rightID, ParentID: parent.node, LeftChild: -1, RightChild: -1,
			NodeType: LeafNode, LeafValue: g.leafOutput(s.RightGrad, s.RightHess),
			DataCount: len(rightRows), SumHessian: s.RightHess, Depth: depth,
		},
	)
	node := &tree.Nodes[parent.node]
	node.NodeType = InternalNode
	node.SplitFeature = s.Feature
	node.Threshold = s.Threshold
	node.Gain = s.Gain
	node.LeftChild = leftID
	node.RightChild = rightID
	node.LeafValue = 0

	left := &leafCandidate{node: leftID, rows: leftRows, grad: s.LeftGrad, hess: s.LeftHess, depth: depth}
	right := &leafCandidate{node: rightID, rows: rightRows, grad: s.RightGrad, hess: s.RightHess, depth: depth}

	if g.canSplit(left) || g.canSplit(right) {
		// histogram subtraction: build the smaller child, derive the larger
		small, large := left, right
		if len(rightRows) < len(leftRows) {
			small, large = right, left
		}
		small.hist = g.buildHistogram(grad, hess, small.rows, features)
		large.hist = subtractHistogram(parent.hist, small.hist)
		g.evaluate(left, features)
		g.evaluate(right, features)
	}
	// histograms are kept only while a leaf can still be split
	for _, leaf := range []*leafCandidate{left, right} {
		if !leaf.ok {
			leaf.hist = nil
		}
	}
	parent.hist = nil
	return left, right
}

func (g *grower) canSplit(leaf *leafCandidate) bool {
	if g.params.MaxDepth > 0 && leaf.depth >= g.params.MaxDepth {
		return false
	}
	return len(leaf.rows) >= 2*g.params.MinDataInLeaf &&
		leaf.hess >= 2*g.params.MinSumHessianInLeaf
}

func (g *grower) buildHistogram(grad, hess []float64, rows, features []int) [][]histBin {
	hist := make([][]histBin, len(g.data.bins))
	parallel.ParallelizeWithThreshold(len(features), 4, g.workers, func(start, end int) {
		for _, j := range features[start:end] {
			h := make([]histBin, g.data.mappers[j].numBins())
			column := g.data.bins[j]
			for _, r := range rows {
				b := &h[column[r]]
				b.sumGrad += grad[r]
				b.sumHess += hess[r]
				b.count++
			}
			hist[j] = h
		}
	})
	return hist
}

func subtractHistogram(parent, child [][]histBin) [][]histBin {
	out := make([][]histBin, len(parent))
	for j := range parent {
		if parent[j] == nil || child[j] == nil {
			continue
		}
		h := make([]histBin, len(parent[j]))
		for b := range h {
			h[b] = histBin{
				sumGrad: parent[j][b].sumGrad - child[j][b].sumGrad,
				sumHess: parent[j][b].sumHess - child[j][b].sumHess,
				count:   parent[j][b].count - child[j][b].count,
			}
		}
		out[j] = h
	}
	return out
}

// evaluate finds the best split of leaf over features and stores it on the leaf.
func (g *grower) evaluate(leaf *leafCandidate, features []int) {
	leaf.ok = false
	if !g.canSplit(leaf) {
		return
	}

	parentScore := g.leafScore(leaf.grad, leaf.hess)
	best := make([]SplitInfo, len(features))
	found := make([]bool, len(features))

	parallel.ParallelizeWithThreshold(len(features), 4, g.workers, func(start, end int) {
		for k := start; k < end; k++ {
			best[k], found[k] = g.bestSplitForFeature(leaf, features[k], parentScore)
		}
	})

	// reduce in feature order so ties resolve to the lowest feature index
	for k := range features {
		if !found[k] {
			continue
		}
		if !leaf.ok || best[k].Gain > leaf.split.Gain {
			leaf.split = best[k]
			leaf.ok = true
		}
	}
}

func (g *grower) bestSplitForFeature(leaf *leafCandidate, feature int, parentScore float64) (SplitInfo, bool) {
	mapper := g.data.mappers[feature]
	h := leaf.hist[feature]
	if h == nil || len(mapper.upperBounds) == 0 {
		return SplitInfo{}, false
	}

	var best SplitInfo
	found := false
	var lg, lh float64
	lc := 0
	minData := g.params.MinDataInLeaf
	minHess := g.params.MinSumHessianInLeaf

	for b := 0; b < len(mapper.upperBounds); b++ {
		lg += h[b].sumGrad
		lh += h[b].sumHess
		lc += h[b].count
		if lc < minData || lh < minHess {
			continue
		}
		rc := len(leaf.rows) - lc
		rg := leaf.grad - lg
		rh := leaf.hess - lh
		if rc < minData || rh < minHess {
			break
		}

		gain := 0.5 * (g.leafScore(lg, lh) + g.leafScore(rg, rh) - parentScore)
		if gain <= g.params.MinGainToSplit || gain <= kEpsilon {
			continue
		}
		if !found || gain > best.Gain {
			best = SplitInfo{
				Feature:    feature,
				Bin:        b,
				Threshold:  mapper.upperBounds[b],
				Gain:       gain,
				LeftGrad:   lg,
				LeftHess:   lh,
				LeftCount:  lc,
				RightGrad:  rg,
				RightHess:  rh,
				RightCount: rc,
			}
			found = true
		}
	}
	return best, found
}

func thresholdL1(s, l1 float64) float64 {
	reg := math.Max(0, math.Abs(s)-l1)
	if s < 0 {
		return -reg
	}
	return reg
}

func (g *grower) leafScore(sumGrad, sumHess float64) float64 {
	denom := sumHess + g.params.LambdaL2
	if denom < kEpsilon {
		return 0
	}
	t := thresholdL1(sumGrad, g.params.LambdaL1)
	return t * t / denom
}

func (g *grower) leafOutput(sumGrad, sumHess float64) float64 {
	denom := sumHess + g.params.LambdaL2
	if denom < kEpsilon {
		return 0
	}
	return -thresholdL1(sumGrad, g.params.LambdaL1) / denom
}
