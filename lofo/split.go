package lofo

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Fold is one forward-chaining split: rows [0, TrainEnd) train and rows
// [TrainEnd, ValidEnd) validate.
type Fold struct {
	Index    int
	TrainEnd int
	ValidEnd int
}

// TrainIndices returns the training row indices.
func (f Fold) TrainIndices() []int {
	return rangeIndices(0, f.TrainEnd)
}

// ValidIndices returns the validation row indices.
func (f Fold) ValidIndices() []int {
	return rangeIndices(f.TrainEnd, f.ValidEnd)
}

func (f Fold) String() string {
	return fmt.Sprintf("fold %d: train [0, %d) valid [%d, %d)", f.Index, f.TrainEnd, f.TrainEnd, f.ValidEnd)
}

func rangeIndices(start, end int) []int {
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// TimeSeriesSplit splits n ordered rows into NSplits folds of equal validation size
// n/(NSplits+1). Fold i validates the block ending (NSplits-1-i) blocks before the end
// and trains on every earlier row, so training windows grow fold over fold.
type TimeSeriesSplit struct {
	NSplits int
}

// NewTimeSeriesSplit creates a splitter with nSplits folds.
func NewTimeSeriesSplit(nSplits int) *TimeSeriesSplit {
	return &TimeSeriesSplit{NSplits: nSplits}
}

// Split returns the folds for n rows. It fails with an InsufficientDataError when any
// fold would have an empty train or validation range.
func (s *TimeSeriesSplit) Split(n int) ([]Fold, error) {
	if s.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", s.NSplits)
	}
	if n < s.NSplits+1 {
		return nil, errors.NewInsufficientDataError("TimeSeriesSplit.Split", n, s.NSplits+1, "too few rows for the number of folds")
	}
	testSize := n / (s.NSplits + 1)
	folds := make([]Fold, s.NSplits)
	for i := range folds {
		start := n - (s.NSplits-i)*testSize
		folds[i] = Fold{Index: i, TrainEnd: start, ValidEnd: start + testSize}
	}
	return folds, nil
}

// HoldoutSize returns the number of trailing rows reserved for scoring:
// round-half-to-even of n*fraction.
func HoldoutSize(n int, fraction float64) int {
	return int(math.RoundToEven(float64(n) * fraction))
}
