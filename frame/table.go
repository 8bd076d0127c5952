// Package frame holds the chronological feature table LOFO runs over.
//
// A Table is immutable: Drop, Select, WithColumn, Slice and friends return new tables
// that may share column storage with the receiver. Callers must treat every slice a
// Table hands out as read-only.
package frame

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Partition tags a row as belonging to the training or the test file.
type Partition string

const (
	PartitionTrain Partition = "Train"
	PartitionTest  Partition = "Test"
)

// ErrNonChronological is returned when time decreases within a group.
var ErrNonChronological = errors.New("frame: rows are not in chronological order")

// Index carries the per-row identity columns. Times, Groups and Partitions may be nil.
type Index struct {
	IDs        []int64
	Times      []time.Time
	Groups     []string
	Partitions []Partition
}

func (ix Index) len() int {
	return len(ix.IDs)
}

func (ix Index) take(rows []int) Index {
	out := Index{IDs: make([]int64, len(rows))}
	if ix.Times != nil {
		out.Times = make([]time.Time, len(rows))
	}
	if ix.Groups != nil {
		out.Groups = make([]string, len(rows))
	}
	if ix.Partitions != nil {
		out.Partitions = make([]Partition, len(rows))
	}
	for k, r := range rows {
		out.IDs[k] = ix.IDs[r]
		if out.Times != nil {
			out.Times[k] = ix.Times[r]
		}
		if out.Groups != nil {
			out.Groups[k] = ix.Groups[r]
		}
		if out.Partitions != nil {
			out.Partitions[k] = ix.Partitions[r]
		}
	}
	return out
}

func (ix Index) slice(start, end int) Index {
	out := Index{IDs: ix.IDs[start:end:end]}
	if ix.Times != nil {
		out.Times = ix.Times[start:end:end]
	}
	if ix.Groups != nil {
		out.Groups = ix.Groups[start:end:end]
	}
	if ix.Partitions != nil {
		out.Partitions = ix.Partitions[start:end:end]
	}
	return out
}

// Column is a named numeric column. NaN marks a missing value.
type Column struct {
	Name   string
	Values []float64
}

// Table is an ordered, chronological set of rows with named numeric columns.
type Table struct {
	index Index
	names []string
	cols  map[string][]float64
}

// New builds a Table. Every optional index column and every value column must have one
// entry per ID, column names must be unique, and time must not decrease within a group.
func New(index Index, cols ...Column) (*Table, error) {
	n := index.len()
	if index.Times != nil && len(index.Times) != n {
		return nil, errors.NewSchemaError("frame.New", "Time", fmt.Sprintf("expected %d values, got %d", n, len(index.Times)))
	}
	if index.Groups != nil && len(index.Groups) != n {
		return nil, errors.NewSchemaError("frame.New", "Group", fmt.Sprintf("expected %d values, got %d", n, len(index.Groups)))
	}
	if index.Partitions != nil && len(index.Partitions) != n {
		return nil, errors.NewSchemaError("frame.New", "Partition", fmt.Sprintf("expected %d values, got %d", n, len(index.Partitions)))
	}

	t := &Table{
		index: index,
		names: make([]string, 0, len(cols)),
		cols:  make(map[string][]float64, len(cols)),
	}
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.NewSchemaError("frame.New", "", "column name is empty")
		}
		if _, dup := t.cols[c.Name]; dup {
			return nil, errors.NewSchemaError("frame.New", c.Name, "duplicate column")
		}
		if len(c.Values) != n {
			return nil, errors.NewSchemaError("frame.New", c.Name, fmt.Sprintf("expected %d values, got %d", n, len(c.Values)))
		}
		t.names = append(t.names, c.Name)
		t.cols[c.Name] = c.Values
	}
	if err := t.checkChronological(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) checkChronological() error {
	if t.index.Times == nil {
		return nil
	}
	last := make(map[string]time.Time)
	for i, ts := range t.index.Times {
		g := t.Group(i)
		if prev, ok := last[g]; ok && ts.Before(prev) {
			return errors.Wrapf(ErrNonChronological, "row %d (id %d, group %q): %s before %s",
				i, t.index.IDs[i], g, ts.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		last[g] = ts
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.index.len()
}

// Columns returns the value column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// HasColumn reports whether name is a value column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	values, ok := t.cols[name]
	if !ok {
		return nil, errors.NewSchemaError("Table.Column", name, "column not found")
	}
	return append([]float64(nil), values...), nil
}

// IDs returns a copy of the row IDs.
func (t *Table) IDs() []int64 {
	return append([]int64(nil), t.index.IDs...)
}

// Time returns the timestamp of row i, or the zero time when the table has none.
func (t *Table) Time(i int) time.Time {
	if t.index.Times == nil {
		return time.Time{}
	}
	return t.index.Times[i]
}

// Group returns the group of row i, or "" when the table has none.
func (t *Table) Group(i int) string {
	if t.index.Groups == nil {
		return ""
	}
	return t.index.Groups[i]
}

// Groups returns the distinct groups in order of first appearance.
func (t *Table) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < t.Len(); i++ {
		g := t.Group(i)
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// Drop returns a view without the named columns. Every name must exist.
func (t *Table) Drop(names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return nil, errors.NewSchemaError("Table.Drop", name, "column not found")
		}
		drop[name] = true
	}
	out := &Table{index: t.index, cols: make(map[string][]float64, len(t.names))}
	for _, name := range t.names {
		if drop[name] {
			continue
		}
		out.names = append(out.names, name)
		out.cols[name] = t.cols[name]
	}
	return out, nil
}

// Select returns a view with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{index: t.index, cols: make(map[string][]float64, len(names))}
	for _, name := range names {
		values, ok := t.cols[name]
		if !ok {
			return nil, errors.NewSchemaError("Table.Select", name, "column not found")
		}
		if _, dup := out.cols[name]; dup {
			return nil, errors.NewSchemaError("Table.Select", name, "duplicate column")
		}
		out.names = append(out.names, name)
		out.cols[name] = values
	}
	return out, nil
}

// WithColumn returns a table with name set to values, replacing an existing column in
// place or appending a new one.
func (t *Table) WithColumn(name string, values []float64) (*Table, error) {
	if len(values) != t.Len() {
		return nil, errors.NewSchemaError("Table.WithColumn", name, fmt.Sprintf("expected %d values, got %d", t.Len(), len(values)))
	}
	out := &Table{index: t.index, names: append([]string(nil), t.names...), cols: make(map[string][]float64, len(t.names)+1)}
	for k, v := range t.cols {
		out.cols[k] = v
	}
	if _, exists := out.cols[name]; !exists {
		out.names = append(out.names, name)
	}
	out.cols[name] = values
	return out, nil
}

// Slice returns rows [start, end).
func (t *Table) Slice(start, end int) (*Table, error) {
	if start < 0 || end > t.Len() || start > end {
		return nil, errors.NewValueError("Table.Slice", fmt.Sprintf("invalid range [%d, %d) for %d rows", start, end, t.Len()))
	}
	out := &Table{index: t.index.slice(start, end), names: t.names, cols: make(map[string][]float64, len(t.names))}
	for name, values := range t.cols {
		out.cols[name] = values[start:end:end]
	}
	return out, nil
}

// Take returns the given rows in the given order.
func (t *Table) Take(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.Len() {
			return nil, errors.NewValueError("Table.Take", fmt.Sprintf("row %d out of range for %d rows", r, t.Len()))
		}
	}
	out := &Table{index: t.index.take(rows), names: t.names, cols: make(map[string][]float64, len(t.names))}
	for name, values := range t.cols {
		col := make([]float64, len(rows))
		for k, r := range rows {
			col[k] = values[r]
		}
		out.cols[name] = col
	}
	if err := out.checkChronological(); err != nil {
		return nil, err
	}
	return out, nil
}

// Partition returns the rows tagged p. A table without partitions is treated as all Train.
func (t *Table) Partition(p Partition) *Table {
	var rows []int
	for i := 0; i < t.Len(); i++ {
		rp := PartitionTrain
		if t.index.Partitions != nil {
			rp = t.index.Partitions[i]
		}
		if rp == p {
			rows = append(rows, i)
		}
	}
	out, _ := t.Take(rows)
	return out
}

// GroupRows returns the row indices of each group, in row order.
func (t *Table) GroupRows() map[string][]int {
	out := make(map[string][]int)
	for i := 0; i < t.Len(); i++ {
		g := t.Group(i)
		out[g] = append(out[g], i)
	}
	return out
}

// Matrix copies the named columns into a rows x len(features) matrix.
func (t *Table) Matrix(features []string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, errors.NewSchemaError("Table.Matrix", "", "no features requested")
	}
	if t.Len() == 0 {
		return nil, errors.NewValueError("Table.Matrix", "table has no rows")
	}
	cols := make([][]float64, len(features))
	for j, name := range features {
		values, ok := t.cols[name]
		if !ok {
			return nil, errors.NewSchemaError("Table.Matrix", name, "column not found")
		}
		cols[j] = values
	}
	m := mat.NewDense(t.Len(), len(features), nil)
	for j, values := range cols {
		m.SetCol(j, values)
	}
	return m, nil
}

// Concat stacks tables with identical column sets. Column order follows the first table.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.NewValueError("frame.Concat", "no tables")
	}
	first := tables[0]
	var ix Index
	hasTimes, hasGroups, hasParts := first.index.Times != nil, first.index.Groups != nil, first.index.Partitions != nil
	cols := make([]Column, len(first.names))
	for j, name := range first.names {
		cols[j].Name = name
	}

	for k, t := range tables {
		if len(t.names) != len(first.names) {
			return nil, errors.NewSchemaError("frame.Concat", "", fmt.Sprintf("table %d has %d columns, want %d", k, len(t.names), len(first.names)))
		}
		if (t.index.Times != nil) != hasTimes || (t.index.Groups != nil) != hasGroups || (t.index.Partitions != nil) != hasParts {
			return nil, errors.NewSchemaError("frame.Concat", "", fmt.Sprintf("table %d has a different index layout", k))
		}
		ix.IDs = append(ix.IDs, t.index.IDs...)
		if hasTimes {
			ix.Times = append(ix.Times, t.index.Times...)
		}
		if hasGroups {
			ix.Groups = append(ix.Groups, t.index.Groups...)
		}
		if hasParts {
			ix.Partitions = append(ix.Partitions, t.index.Partitions...)
		}
		for j := range cols {
			values, ok := t.cols[cols[j].Name]
			if !ok {
				return nil, errors.NewSchemaError("frame.Concat", cols[j].Name, fmt.Sprintf("missing from table %d", k))
			}
			cols[j].Values = append(cols[j].Values, values...)
		}
	}
	return New(ix, cols...)
}
