package frame

import (
	"fmt"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Series is a named sequence of values keyed by row ID, typically the production target.
type Series struct {
	Name   string
	IDs    []int64
	Values []float64
}

// NewSeries validates that ids and values line up and ids are unique.
func NewSeries(name string, ids []int64, values []float64) (Series, error) {
	if len(ids) != len(values) {
		return Series{}, errors.NewSchemaError("frame.NewSeries", name, fmt.Sprintf("%d ids for %d values", len(ids), len(values)))
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return Series{}, errors.NewSchemaError("frame.NewSeries", name, fmt.Sprintf("duplicate id %d", id))
		}
		seen[id] = true
	}
	return Series{Name: name, IDs: ids, Values: values}, nil
}

// Len returns the number of values.
func (s Series) Len() int {
	return len(s.Values)
}

// Align returns the values of s in the row order of t. Every row ID of t must be present
// in s; extra IDs in s are ignored.
func (t *Table) Align(s Series) ([]float64, error) {
	if len(s.IDs) != len(s.Values) {
		return nil, errors.NewSchemaError("Table.Align", s.Name, fmt.Sprintf("%d ids for %d values", len(s.IDs), len(s.Values)))
	}
	pos := make(map[int64]int, len(s.IDs))
	for i, id := range s.IDs {
		pos[id] = i
	}
	out := make([]float64, t.Len())
	for i, id := range t.index.IDs {
		k, ok := pos[id]
		if !ok {
			return nil, errors.NewSchemaError("Table.Align", s.Name, fmt.Sprintf("no value for id %d", id))
		}
		out[i] = s.Values[k]
	}
	return out, nil
}

// SeriesFrom pairs values with the row IDs of t.
func (t *Table) SeriesFrom(name string, values []float64) (Series, error) {
	if len(values) != t.Len() {
		return Series{}, errors.NewSchemaError("Table.SeriesFrom", name, fmt.Sprintf("expected %d values, got %d", t.Len(), len(values)))
	}
	return Series{Name: name, IDs: t.IDs(), Values: append([]float64(nil), values...)}, nil
}
