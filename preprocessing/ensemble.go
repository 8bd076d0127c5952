package preprocessing

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// Aggregation collapses the ensemble members of one variable into a single value.
type Aggregation string

const (
	AggregateMedian Aggregation = "median"
	AggregateMean   Aggregation = "mean"
)

// Aggregated column names, in output order.
const (
	ColU100 = "U_100m"
	ColV100 = "V_100m"
	ColU10  = "U_10m"
	ColV10  = "V_10m"
	ColT    = "T"
	ColCLCT = "CLCT"
)

// AggregatedColumns lists the variables AggregateEnsemble can produce.
var AggregatedColumns = []string{ColU100, ColV100, ColU10, ColV10, ColT, ColCLCT}

// ensembleVariable maps a raw CNR column to its variable. Rules are tried in order and
// the first match wins, so "NWP1_00h_D-1_U" is a 100m wind and "NWP3_00h_D-1_T" is a
// temperature. Columns matching no rule are left out.
func ensembleVariable(column string) (string, bool) {
	hub := strings.Contains(column, "NWP1") || strings.Contains(column, "NWP2") || strings.Contains(column, "NWP3")
	surface := strings.Contains(column, "NWP4")
	switch {
	case strings.Contains(column, "U") && hub:
		return ColU100, true
	case strings.Contains(column, "V") && hub:
		return ColV100, true
	case strings.Contains(column, "U") && surface:
		return ColU10, true
	case strings.Contains(column, "V") && surface:
		return ColV10, true
	case strings.Contains(column, "_T"):
		return ColT, true
	case strings.Contains(column, "CLCT"):
		return ColCLCT, true
	}
	return "", false
}

// EnsembleMembers groups the columns of t by the variable they forecast.
func EnsembleMembers(columns []string) map[string][]string {
	out := make(map[string][]string)
	for _, c := range columns {
		if v, ok := ensembleVariable(c); ok {
			out[v] = append(out[v], c)
		}
	}
	return out
}

// AggregateEnsemble appends one column per variable in AggregatedColumns, computed
// row-wise over that variable's ensemble members with NaN members skipped. A row
// with no finite member gets NaN. Variables without members are not added.
func AggregateEnsemble(t *frame.Table, agg Aggregation) (*frame.Table, error) {
	reduce, err := reducer(agg)
	if err != nil {
		return nil, err
	}
	members := EnsembleMembers(t.Columns())
	if len(members) == 0 {
		return nil, errors.NewSchemaError("preprocessing.AggregateEnsemble", "", "no weather-ensemble columns found")
	}

	logger := log.GetLoggerWithName("preprocessing")
	out := t
	for _, variable := range AggregatedColumns {
		sources := members[variable]
		if len(sources) == 0 {
			continue
		}
		cols := make([][]float64, len(sources))
		for k, name := range sources {
			if cols[k], err = t.Column(name); err != nil {
				return nil, err
			}
		}
		values := make([]float64, t.Len())
		row := make([]float64, 0, len(sources))
		for i := range values {
			row = row[:0]
			for _, col := range cols {
				if !math.IsNaN(col[i]) {
					row = append(row, col[i])
				}
			}
			values[i] = reduce(row)
		}
		if out, err = out.WithColumn(variable, values); err != nil {
			return nil, err
		}
		logger.Debug("aggregated ensemble", "variable", variable, "members", len(sources), "aggregation", string(agg))
	}
	return out, nil
}

func reducer(agg Aggregation) (func([]float64) float64, error) {
	switch agg {
	case AggregateMedian:
		return median, nil
	case AggregateMean:
		return func(x []float64) float64 {
			if len(x) == 0 {
				return math.NaN()
			}
			return stat.Mean(x, nil)
		}, nil
	default:
		return nil, errors.NewValidationError("aggregation", "unknown aggregation", string(agg))
	}
}

// median averages the two middle values for even lengths. x is reordered.
func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return (x[n/2-1] + x[n/2]) / 2
}

// ClipBelow returns t with column values below floor replaced by floor. NaN is kept.
func ClipBelow(t *frame.Table, column string, floor float64) (*frame.Table, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v < floor {
			values[i] = floor
		}
	}
	return t.WithColumn(column, values)
}

// Simplify keeps only the aggregated variables present in t, in AggregatedColumns order.
// The ID, Time, WF and Set index columns always travel with the table.
func Simplify(t *frame.Table) (*frame.Table, error) {
	var keep []string
	for _, name := range AggregatedColumns {
		if t.HasColumn(name) {
			keep = append(keep, name)
		}
	}
	if len(keep) == 0 {
		return nil, errors.NewSchemaError("preprocessing.Simplify", "", "no aggregated columns to keep")
	}
	return t.Select(keep...)
}
