package frame

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

func hours(n int) []time.Time {
	start := time.Date(2018, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		Index{IDs: []int64{10, 11, 12, 13}, Times: hours(4)},
		Column{Name: "a", Values: []float64{1, 2, 3, 4}},
		Column{Name: "b", Values: []float64{5, 6, 7, 8}},
		Column{Name: "c", Values: []float64{9, 10, 11, 12}},
	)
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tbl := sampleTable(t)
		assert.Equal(t, 4, tbl.Len())
		assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns())
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := New(Index{IDs: []int64{1, 2}}, Column{Name: "a", Values: []float64{1}})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "a", schemaErr.Column)
	})

	t.Run("duplicate column", func(t *testing.T) {
		_, err := New(Index{IDs: []int64{1}},
			Column{Name: "a", Values: []float64{1}},
			Column{Name: "a", Values: []float64{2}})
		assert.Error(t, err)
	})

	t.Run("decreasing time", func(t *testing.T) {
		times := hours(3)
		times[1], times[2] = times[2], times[1]
		_, err := New(Index{IDs: []int64{1, 2, 3}, Times: times})
		assert.True(t, errors.Is(err, ErrNonChronological))
	})

	t.Run("time restarts per group", func(t *testing.T) {
		times := append(hours(2), hours(2)...)
		_, err := New(Index{IDs: []int64{1, 2, 3, 4}, Times: times, Groups: []string{"WF1", "WF1", "WF2", "WF2"}})
		assert.NoError(t, err)
	})
}

func TestViewsDoNotMutate(t *testing.T) {
	tbl := sampleTable(t)

	dropped, err := tbl.Drop("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, dropped.Columns())
	assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns())

	_, err = tbl.Drop("missing")
	var schemaErr *errors.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	with, err := tbl.WithColumn("b", []float64{0, 0, 0, 0})
	require.NoError(t, err)
	b, _ := with.Column("b")
	assert.Equal(t, []float64{0, 0, 0, 0}, b)
	orig, _ := tbl.Column("b")
	assert.Equal(t, []float64{5, 6, 7, 8}, orig)
	assert.Equal(t, []string{"a", "b", "c"}, with.Columns())

	added, err := tbl.WithColumn("d", []float64{1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, added.Columns())
	assert.False(t, tbl.HasColumn("d"))

	col, _ := tbl.Column("a")
	col[0] = 100
	again, _ := tbl.Column("a")
	assert.Equal(t, 1.0, again[0])
}

func TestSliceTakeSelect(t *testing.T) {
	tbl := sampleTable(t)

	s, err := tbl.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, s.IDs())
	a, _ := s.Column("a")
	assert.Equal(t, []float64{2, 3}, a)

	_, err = tbl.Slice(3, 5)
	assert.Error(t, err)

	taken, err := tbl.Take([]int{0, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 13}, taken.IDs())

	sel, err := tbl.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sel.Columns())
}

func TestMatrix(t *testing.T) {
	tbl := sampleTable(t)
	m, err := tbl.Matrix([]string{"c", "a"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 9.0, m.At(0, 0))
	assert.Equal(t, 4.0, m.At(3, 1))

	_, err = tbl.Matrix([]string{"a", "zzz"})
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "zzz", schemaErr.Column)
}

func TestAlign(t *testing.T) {
	tbl := sampleTable(t)
	s, err := NewSeries("Production", []int64{13, 12, 11, 10, 99}, []float64{4, 3, 2, 1, 0})
	require.NoError(t, err)

	y, err := tbl.Align(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, y)

	_, err = tbl.Align(Series{Name: "short", IDs: []int64{10}, Values: []float64{1}})
	assert.Error(t, err)

	_, err = NewSeries("dup", []int64{1, 1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestPartitionAndConcat(t *testing.T) {
	train, err := New(
		Index{IDs: []int64{1, 2}, Times: hours(2), Groups: []string{"WF1", "WF1"}, Partitions: []Partition{PartitionTrain, PartitionTrain}},
		Column{Name: "a", Values: []float64{1, 2}},
	)
	require.NoError(t, err)
	test, err := New(
		Index{IDs: []int64{3}, Times: hours(3)[2:], Groups: []string{"WF1"}, Partitions: []Partition{PartitionTest}},
		Column{Name: "a", Values: []float64{3}},
	)
	require.NoError(t, err)

	full, err := Concat(train, test)
	require.NoError(t, err)
	assert.Equal(t, 3, full.Len())
	assert.Equal(t, 2, full.Partition(PartitionTrain).Len())
	assert.Equal(t, []int64{3}, full.Partition(PartitionTest).IDs())

	other, err := New(Index{IDs: []int64{4}}, Column{Name: "b", Values: []float64{1}})
	require.NoError(t, err)
	_, err = Concat(train, other)
	assert.Error(t, err)
}

const cnrSample = `ID,WF,Time,NWP1_00h_D-2_U,NWP1_00h_D-2_V,NWP4_00h_D-1_CLCT
1,WF1,01/05/2018 01:00,1.5,-0.5,
2,WF1,01/05/2018 02:00,2.5,0.5,12.5
3,WF2,01/05/2018 01:00,NaN,1,-3
`

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(cnrSample), DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"NWP1_00h_D-2_U", "NWP1_00h_D-2_V", "NWP4_00h_D-1_CLCT"}, tbl.Columns())
	assert.Equal(t, []string{"WF1", "WF2"}, tbl.Groups())
	assert.Equal(t, time.Date(2018, 5, 1, 2, 0, 0, 0, time.UTC), tbl.Time(1))

	clct, _ := tbl.Column("NWP4_00h_D-1_CLCT")
	assert.True(t, math.IsNaN(clct[0]))
	u, _ := tbl.Column("NWP1_00h_D-2_U")
	assert.True(t, math.IsNaN(u[2]))
	assert.Equal(t, 3, tbl.Partition(PartitionTrain).Len())

	t.Run("round trip through WriteCSV", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, tbl))
		back, err := ReadCSV(&buf, DefaultCSVOptions())
		require.NoError(t, err)
		assert.Equal(t, tbl.IDs(), back.IDs())
		v, _ := back.Column("NWP1_00h_D-2_V")
		assert.Equal(t, []float64{-0.5, 0.5, 1}, v)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("ID,x\n1,abc\n"), CSVOptions{IDColumn: "ID"})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "x", schemaErr.Column)
	})

	t.Run("missing id column", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("x\n1\n"), CSVOptions{IDColumn: "ID"})
		assert.Error(t, err)
	})
}

func TestReadSeriesCSV(t *testing.T) {
	s, err := ReadSeriesCSV(strings.NewReader("ID,Production\n1,0.5\n2,1.25\n"), "ID", "Production")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, s.IDs)
	assert.Equal(t, []float64{0.5, 1.25}, s.Values)

	_, err = ReadSeriesCSV(strings.NewReader("ID,Other\n1,0.5\n"), "ID", "Production")
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, s, "ID"))
	assert.Equal(t, "ID,Production\n1,0.5\n2,1.25\n", buf.String())
}

func TestSimulateWindFarm(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Farms = []string{"WF1", "WF2"}
	cfg.Hours = 100
	cfg.TestFraction = 0.2

	tbl, y, err := SimulateWindFarm(cfg)
	require.NoError(t, err)
	assert.Equal(t, 200, tbl.Len())
	assert.Equal(t, 200, y.Len())
	assert.Equal(t, 40, tbl.Partition(PartitionTest).Len())
	assert.True(t, tbl.HasColumn("NWP1_00h_D-1_U"))
	assert.True(t, tbl.HasColumn("NWP4_12h_D-1_CLCT"))
	assert.True(t, tbl.HasColumn("NWP3_12h_D-1_T"))
	for _, v := range y.Values {
		assert.Greater(t, v, 0.0)
	}

	again, y2, err := SimulateWindFarm(cfg)
	require.NoError(t, err)
	a1, _ := tbl.Column("NWP2_00h_D-1_V")
	a2, _ := again.Column("NWP2_00h_D-1_V")
	assert.Equal(t, a1, a2)
	assert.Equal(t, y.Values, y2.Values)

	_, _, err = SimulateWindFarm(SimConfig{Farms: []string{"WF1"}, Hours: 1})
	assert.Error(t, err)
}
