package lightgbm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Dataset is a feature matrix with labels. It is read-only once created and may be
// shared between Train calls and goroutines.
type Dataset struct {
	data         *mat.Dense
	label        []float64
	featureNames []string
}

// DatasetOption configures a Dataset.
type DatasetOption func(*Dataset)

// WithFeatureNames sets the column names. The length must match the column count.
func WithFeatureNames(names []string) DatasetOption {
	return func(d *Dataset) {
		d.featureNames = append([]string(nil), names...)
	}
}

// NewDataset wraps X and label. X is not copied and must not be modified afterwards.
// Labels must be finite; feature values may be NaN (treated as missing).
func NewDataset(X *mat.Dense, label []float64, opts ...DatasetOption) (*Dataset, error) {
	if X == nil || X.IsEmpty() {
		return nil, errors.NewValueError("NewDataset", "feature matrix is empty")
	}
	rows, cols := X.Dims()
	if len(label) != rows {
		return nil, errors.NewDimensionError("NewDataset", rows, len(label), 0)
	}
	for i, v := range label {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError("NewDataset", fmt.Sprintf("label at row %d is not finite: %v", i, v))
		}
	}

	d := &Dataset{
		data:  X,
		label: append([]float64(nil), label...),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.featureNames == nil {
		d.featureNames = make([]string, cols)
		for j := range d.featureNames {
			d.featureNames[j] = fmt.Sprintf("Column_%d", j)
		}
	}
	if len(d.featureNames) != cols {
		return nil, errors.NewDimensionError("NewDataset", cols, len(d.featureNames), 1)
	}
	return d, nil
}

// NumData returns the number of rows.
func (d *Dataset) NumData() int {
	rows, _ := d.data.Dims()
	return rows
}

// NumFeature returns the number of columns.
func (d *Dataset) NumFeature() int {
	_, cols := d.data.Dims()
	return cols
}

// GetLabel returns the labels. The slice must not be modified.
func (d *Dataset) GetLabel() []float64 {
	return d.label
}

// FeatureNames returns a copy of the column names.
func (d *Dataset) FeatureNames() []string {
	return append([]string(nil), d.featureNames...)
}

// Data returns the underlying matrix. It must not be modified.
func (d *Dataset) Data() *mat.Dense {
	return d.data
}
