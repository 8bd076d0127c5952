package lightgbm

import (
	"math"
)

// NodeType distinguishes split nodes from leaves.
type NodeType int

const (
	InternalNode NodeType = iota
	LeafNode
)

// Node is one node of a regression tree. Rows with feature value <= Threshold go left;
// NaN goes right.
type Node struct {
	NodeID       int
	ParentID     int // -1 for the root
	LeftChild    int
	RightChild   int
	NodeType     NodeType
	SplitFeature int
	Threshold    float64
	Gain         float64
	LeafValue    float64
	DataCount    int
	SumHessian   float64
	Depth        int
}

// Tree is a single boosted tree. Outputs are LeafValue scaled by ShrinkageRate.
type Tree struct {
	Nodes         []Node
	ShrinkageRate float64
	NumLeaves     int
}

// Predict returns the shrunk output of the tree for one row of raw feature values.
func (t *Tree) Predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.NodeType == LeafNode {
			return node.LeafValue * t.ShrinkageRate
		}
		v := row[node.SplitFeature]
		if !math.IsNaN(v) && v <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Depth returns the depth of the deepest leaf, the root being depth 0.
func (t *Tree) Depth() int {
	depth := 0
	for i := range t.Nodes {
		if t.Nodes[i].NodeType == LeafNode && t.Nodes[i].Depth > depth {
			depth = t.Nodes[i].Depth
		}
	}
	return depth
}

func (t *Tree) clone() Tree {
	return Tree{
		Nodes:         append([]Node(nil), t.Nodes...),
		ShrinkageRate: t.ShrinkageRate,
		NumLeaves:     t.NumLeaves,
	}
}
