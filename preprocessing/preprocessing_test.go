package preprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

func TestStabilizerRoundTrip(t *testing.T) {
	positive := []float64{3.2, 4.1, 0.5, 2.2, 9.9, 9.9, 1.05, 7.3}
	signed := []float64{-1.5, 2, 0, 3.25, -7, 4, 4, 0.125}

	tests := []struct {
		name   string
		policy Policy
		lag    int
		series []float64
	}{
		{"first-difference signed", PolicyFirstDifference, 0, signed},
		{"first-difference positive", PolicyFirstDifference, 0, positive},
		{"log-difference lag 1", PolicyLogDifference, 1, positive},
		{"log-difference lag 3", PolicyLogDifference, 3, positive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStabilizer(tt.policy, tt.lag)
			require.NoError(t, err)
			assert.Equal(t, tt.policy, s.Policy())

			residual, err := s.Stabilize(tt.series)
			require.NoError(t, err)
			assert.Equal(t, 0.0, residual[0])

			back, err := s.Revert(residual, tt.series[0])
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.series, back, 1e-9)
		})
	}
}

func TestDifferencer(t *testing.T) {
	d := Differencer{}
	r, err := d.Stabilize([]float64{1, 3, 6, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 3, 4}, r)

	// continuing a known series from its last value
	v, err := d.Revert([]float64{1, 1, -2}, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12, 10}, v)

	empty, err := d.Stabilize(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLogDifferencerLag1MatchesCumsum(t *testing.T) {
	l := LogDifferencer{Lag: 1}
	residual := []float64{0.1, -0.2, 0.05}
	v, err := l.Revert(residual, 2)
	require.NoError(t, err)
	cum := 0.0
	for i, r := range residual {
		cum += r
		assert.InDelta(t, 2*math.Exp(cum), v[i], 1e-12)
	}
}

func TestLogDifferencerDomain(t *testing.T) {
	l := LogDifferencer{Lag: 1}
	for _, bad := range []float64{0, -1, math.NaN()} {
		_, err := l.Stabilize([]float64{1, 2, bad, 4})
		var domainErr *errors.DomainError
		require.True(t, errors.As(err, &domainErr), "value %v", bad)
		assert.Equal(t, 2, domainErr.Index)
	}

	_, err := l.Revert([]float64{0.1}, 0)
	var domainErr *errors.DomainError
	assert.True(t, errors.As(err, &domainErr))
}

func TestNewStabilizerUnknown(t *testing.T) {
	_, err := NewStabilizer("box-cox", 1)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = NewStabilizer(PolicyLogDifference, -2)
	assert.Error(t, err)
}

func TestStabilizeByGroup(t *testing.T) {
	values := []float64{1, 10, 2, 20, 4, 40}
	groups := map[string][]int{"WF1": {0, 2, 4}, "WF2": {1, 3, 5}}

	res, err := StabilizeByGroup(Differencer{}, values, groups)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 10, 2, 20}, res)

	back, err := RevertByGroup(Differencer{}, res, groups, map[string]float64{"WF1": 1, "WF2": 10})
	require.NoError(t, err)
	assert.Equal(t, values, back)

	_, err = RevertByGroup(Differencer{}, res, groups, map[string]float64{"WF1": 1})
	var schemaErr *errors.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func ensembleTable(t *testing.T) *frame.Table {
	t.Helper()
	start := time.Date(2018, 5, 1, 1, 0, 0, 0, time.UTC)
	tbl, err := frame.New(
		frame.Index{
			IDs:    []int64{1, 2, 3},
			Times:  []time.Time{start, start.Add(time.Hour), start.Add(2 * time.Hour)},
			Groups: []string{"WF1", "WF1", "WF1"},
		},
		frame.Column{Name: "NWP1_00h_D-2_U", Values: []float64{1, 2, 3}},
		frame.Column{Name: "NWP2_00h_D-2_U", Values: []float64{3, math.NaN(), 5}},
		frame.Column{Name: "NWP3_12h_D-1_U", Values: []float64{8, 4, math.NaN()}},
		frame.Column{Name: "NWP1_00h_D-2_V", Values: []float64{1, 1, 1}},
		frame.Column{Name: "NWP4_00h_D-1_U", Values: []float64{0.5, 0.5, 0.5}},
		frame.Column{Name: "NWP4_00h_D-1_V", Values: []float64{-0.5, -0.5, -0.5}},
		frame.Column{Name: "NWP1_00h_D-2_T", Values: []float64{280, 281, 282}},
		frame.Column{Name: "NWP3_00h_D-2_T", Values: []float64{282, 283, 284}},
		frame.Column{Name: "NWP4_00h_D-1_CLCT", Values: []float64{-4, 50, math.NaN()}},
	)
	require.NoError(t, err)
	return tbl
}

func TestEnsembleMembers(t *testing.T) {
	members := EnsembleMembers(ensembleTable(t).Columns())
	assert.Equal(t, []string{"NWP1_00h_D-2_U", "NWP2_00h_D-2_U", "NWP3_12h_D-1_U"}, members[ColU100])
	assert.Equal(t, []string{"NWP4_00h_D-1_U"}, members[ColU10])
	assert.Equal(t, []string{"NWP1_00h_D-2_T", "NWP3_00h_D-2_T"}, members[ColT])
	assert.Equal(t, []string{"NWP4_00h_D-1_CLCT"}, members[ColCLCT])
}

func TestAggregateEnsemble(t *testing.T) {
	tbl := ensembleTable(t)

	med, err := AggregateEnsemble(tbl, AggregateMedian)
	require.NoError(t, err)
	u, _ := med.Column(ColU100)
	assert.Equal(t, []float64{3, 3, 4}, u)
	temp, _ := med.Column(ColT)
	assert.Equal(t, []float64{281, 282, 283}, temp)

	mean, err := AggregateEnsemble(tbl, AggregateMean)
	require.NoError(t, err)
	u, _ = mean.Column(ColU100)
	assert.InDeltaSlice(t, []float64{4, 3, 4}, u, 1e-12)

	raw, _ := tbl.Column("NWP2_00h_D-2_U")
	assert.True(t, math.IsNaN(raw[1]), "input table must not be modified")
	assert.False(t, tbl.HasColumn(ColU100))

	_, err = AggregateEnsemble(tbl, "mode")
	assert.Error(t, err)
}

func TestProfilePrepare(t *testing.T) {
	out, err := ProfileGPU.Prepare(ensembleTable(t))
	require.NoError(t, err)
	assert.Equal(t, AggregatedColumns, out.Columns())

	clct, _ := out.Column(ColCLCT)
	assert.Equal(t, 0.0, clct[0])
	assert.Equal(t, 50.0, clct[1])
	assert.True(t, math.IsNaN(clct[2]))
	assert.Equal(t, []int64{1, 2, 3}, out.IDs())
}

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile("mean-logdiff")
	require.NoError(t, err)
	assert.Equal(t, AggregateMean, p.Aggregation)
	s, err := p.Stabilizer()
	require.NoError(t, err)
	assert.Equal(t, PolicyLogDifference, s.Policy())

	_, err = LookupProfile("gpu")
	assert.Error(t, err)
}

func TestStabilizeColumns(t *testing.T) {
	tbl := ensembleTable(t)
	out, err := StabilizeColumns(tbl, Differencer{}, "NWP1_00h_D-2_T")
	require.NoError(t, err)
	d, _ := out.Column("NWP1_00h_D-2_T")
	assert.Equal(t, []float64{0, 1, 1}, d)
	orig, _ := tbl.Column("NWP1_00h_D-2_T")
	assert.Equal(t, []float64{280, 281, 282}, orig)

	_, err = StabilizeColumns(tbl, Differencer{}, "missing")
	assert.Error(t, err)
}
