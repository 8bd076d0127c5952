// Package preprocessing conditions CNR weather-ensemble data before LOFO runs:
// it collapses ensemble columns into per-variable summaries and stabilizes series
// so that tree models see approximately stationary inputs.
package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Policy names a stabilization transform.
type Policy string

const (
	// PolicyFirstDifference is r[i] = v[i] - v[i-1] with r[0] = 0.
	PolicyFirstDifference Policy = "first-difference"
	// PolicyLogDifference is r[i] = ln v[i] - ln v[i-lag]. Values must be strictly positive.
	PolicyLogDifference Policy = "log-difference"
)

// Stabilizer turns a raw series into a stationary residual series and back.
//
// Revert(Stabilize(s), s[0]) reproduces s up to floating-point error. When reverting a
// segment that continues a known series, anchor is the last true value before it.
type Stabilizer interface {
	Stabilize(series []float64) ([]float64, error)
	Revert(residual []float64, anchor float64) ([]float64, error)
	Policy() Policy
}

// NewStabilizer returns the Stabilizer for policy. lag is only used by
// PolicyLogDifference and defaults to 1.
func NewStabilizer(policy Policy, lag int) (Stabilizer, error) {
	switch policy {
	case PolicyFirstDifference:
		return Differencer{}, nil
	case PolicyLogDifference:
		if lag == 0 {
			lag = 1
		}
		if lag < 0 {
			return nil, errors.NewValidationError("lag", "must be positive", lag)
		}
		return LogDifferencer{Lag: lag}, nil
	default:
		return nil, errors.NewValidationError("policy", "unknown stabilization policy", string(policy))
	}
}

// Differencer implements PolicyFirstDifference.
type Differencer struct{}

// Policy returns PolicyFirstDifference.
func (Differencer) Policy() Policy { return PolicyFirstDifference }

// Stabilize differences series, prepending the first value as its own predecessor.
func (Differencer) Stabilize(series []float64) ([]float64, error) {
	out := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		out[i] = series[i] - series[i-1]
	}
	return out, nil
}

// Revert returns anchor + cumsum(residual).
func (Differencer) Revert(residual []float64, anchor float64) ([]float64, error) {
	out := make([]float64, len(residual))
	acc := anchor
	for i, r := range residual {
		acc += r
		out[i] = acc
	}
	return out, nil
}

// LogDifferencer implements PolicyLogDifference with a fixed lag. For i < Lag the
// predecessor of v[i] is v[0].
type LogDifferencer struct {
	Lag int
}

// Policy returns PolicyLogDifference.
func (LogDifferencer) Policy() Policy { return PolicyLogDifference }

func (l LogDifferencer) lag() int {
	if l.Lag < 1 {
		return 1
	}
	return l.Lag
}

// Stabilize returns log differences. Any non-positive or NaN value yields a DomainError.
func (l LogDifferencer) Stabilize(series []float64) ([]float64, error) {
	logs := make([]float64, len(series))
	for i, v := range series {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, errors.NewDomainError("LogDifferencer.Stabilize", i, v, "value must be strictly positive and finite")
		}
		logs[i] = math.Log(v)
	}
	lag := l.lag()
	out := make([]float64, len(series))
	for i := range logs {
		prev := 0
		if i >= lag {
			prev = i - lag
		}
		out[i] = logs[i] - logs[prev]
	}
	return out, nil
}

// Revert rebuilds values from log differences: v[i] = anchor*exp(r[i]) for i < Lag and
// v[i-Lag]*exp(r[i]) afterwards. For Lag 1 this is anchor*exp(cumsum(r)[i]).
func (l LogDifferencer) Revert(residual []float64, anchor float64) ([]float64, error) {
	if !(anchor > 0) || math.IsInf(anchor, 0) {
		return nil, errors.NewDomainError("LogDifferencer.Revert", -1, anchor, "anchor must be strictly positive and finite")
	}
	lag := l.lag()
	out := make([]float64, len(residual))
	for i, r := range residual {
		base := anchor
		if i >= lag {
			base = out[i-lag]
		}
		out[i] = base * errors.StabilizeExp(r)
	}
	return out, nil
}

// StabilizeByGroup applies s to every group's rows independently, so differences never
// cross a group boundary. groups maps a group name to its row indices in chronological order.
func StabilizeByGroup(s Stabilizer, values []float64, groups map[string][]int) ([]float64, error) {
	out := make([]float64, len(values))
	for _, g := range sortedKeys(groups) {
		rows := groups[g]
		seg := make([]float64, len(rows))
		for k, r := range rows {
			seg[k] = values[r]
		}
		res, err := s.Stabilize(seg)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", g)
		}
		for k, r := range rows {
			out[r] = res[k]
		}
	}
	return out, nil
}

// RevertByGroup reverts each group's residual rows starting from anchors[g].
func RevertByGroup(s Stabilizer, residual []float64, groups map[string][]int, anchors map[string]float64) ([]float64, error) {
	out := make([]float64, len(residual))
	for _, g := range sortedKeys(groups) {
		anchor, ok := anchors[g]
		if !ok {
			return nil, errors.NewSchemaError("preprocessing.RevertByGroup", g, "no anchor for group")
		}
		rows := groups[g]
		seg := make([]float64, len(rows))
		for k, r := range rows {
			seg[k] = residual[r]
		}
		vals, err := s.Revert(seg, anchor)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", g)
		}
		for k, r := range rows {
			out[r] = vals[k]
		}
	}
	return out, nil
}

// StabilizeColumns returns a copy of t where every named column is stabilized per group.
func StabilizeColumns(t *frame.Table, s Stabilizer, columns ...string) (*frame.Table, error) {
	groups := t.GroupRows()
	out := t
	for _, name := range columns {
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		res, err := StabilizeByGroup(s, values, groups)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		if out, err = out.WithColumn(name, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
