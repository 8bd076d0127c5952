package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/windlofo/core/parallel"
)

// binMapper maps raw feature values to histogram bins. A value v falls in the first bin
// whose upper bound is >= v, so the split "bin <= b" equals "v <= upperBounds[b]".
// NaN values get their own bin after the last bound and always go right.
type binMapper struct {
	upperBounds []float64
}

func (m *binMapper) numBins() int {
	// one bin per bound, one above the last bound, one for NaN
	return len(m.upperBounds) + 2
}

func (m *binMapper) nanBin() int {
	return len(m.upperBounds) + 1
}

func (m *binMapper) valueToBin(v float64) int {
	if math.IsNaN(v) {
		return m.nanBin()
	}
	return sort.SearchFloat64s(m.upperBounds, v)
}

// newBinMapper builds bounds from the distinct values of one column. With at most maxBin
// distinct values every value gets its own bin; otherwise bounds are placed at
// equal-frequency cut points over the sorted values.
func newBinMapper(values []float64, maxBin int) *binMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return &binMapper{}
	}
	sort.Float64s(sorted)

	distinct := []float64{sorted[0]}
	counts := []int{1}
	for _, v := range sorted[1:] {
		if v == distinct[len(distinct)-1] {
			counts[len(counts)-1]++
			continue
		}
		distinct = append(distinct, v)
		counts = append(counts, 1)
	}

	if len(distinct) <= maxBin {
		bounds := make([]float64, 0, len(distinct)-1)
		for i := 0; i+1 < len(distinct); i++ {
			bounds = append(bounds, midpoint(distinct[i], distinct[i+1]))
		}
		return &binMapper{upperBounds: bounds}
	}

	// equal-frequency cuts, never splitting a run of equal values
	perBin := float64(len(sorted)) / float64(maxBin)
	bounds := make([]float64, 0, maxBin-1)
	cum := 0
	next := perBin
	for i := 0; i+1 < len(distinct); i++ {
		cum += counts[i]
		if float64(cum) >= next {
			bounds = append(bounds, midpoint(distinct[i], distinct[i+1]))
			for next <= float64(cum) {
				next += perBin
			}
			if len(bounds) == maxBin-1 {
				break
			}
		}
	}
	return &binMapper{upperBounds: bounds}
}

func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	// guard against rounding onto b, which would move b into the lower bin
	if m >= b {
		return a
	}
	return m
}

// binnedData is the column-major bin index matrix of a training set.
type binnedData struct {
	numRows int
	mappers []*binMapper
	bins    [][]uint16
}

func buildBinnedData(d *Dataset, maxBin, workers int) *binnedData {
	rows, cols := d.data.Dims()
	bd := &binnedData{
		numRows: rows,
		mappers: make([]*binMapper, cols),
		bins:    make([][]uint16, cols),
	}

	// columns are independent; each worker writes its own slots
	parallel.ParallelizeWithThreshold(cols, 4, workers, func(start, end int) {
		column := make([]float64, rows)
		for j := start; j < end; j++ {
			for i := 0; i < rows; i++ {
				column[i] = d.data.At(i, j)
			}
			m := newBinMapper(column, maxBin)
			idx := make([]uint16, rows)
			for i, v := range column {
				idx[i] = uint16(m.valueToBin(v))
			}
			bd.mappers[j] = m
			bd.bins[j] = idx
		}
	})
	return bd
}
