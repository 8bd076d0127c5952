package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/preprocessing"
)

func quickOptions(profile preprocessing.Profile) Options {
	opts := DefaultOptions()
	opts.Profile = profile
	opts.LOFO.NumBoostRound = 10
	opts.LOFO.EarlyStoppingRounds = 3
	return opts
}

func quiet() lofo.Option {
	logger, _ := log.NewTestLogger(log.LevelError)
	return lofo.WithLogger(logger)
}

func simulated(t *testing.T, farms []string, hours int) (*frame.Table, frame.Series) {
	t.Helper()
	cfg := frame.DefaultSimConfig()
	cfg.Farms = farms
	cfg.Hours = hours
	cfg.TestFraction = 0.1
	table, y, err := frame.SimulateWindFarm(cfg)
	require.NoError(t, err)
	return table, y
}

func TestPrepare(t *testing.T) {
	raw, y := simulated(t, []string{"WF1", "WF2"}, 50)

	prep, err := Prepare(raw, y, quickOptions(preprocessing.ProfileGPU))
	require.NoError(t, err)
	assert.Equal(t, 90, prep.Table.Len())
	assert.Equal(t, preprocessing.AggregatedColumns, prep.Features)
	assert.Equal(t, preprocessing.PolicyFirstDifference, prep.Stabilizer.Policy())

	// first rows of each farm restart the difference
	assert.Equal(t, 0.0, prep.Target.Values[0])
	assert.Equal(t, 0.0, prep.Target.Values[45])
	assert.InDelta(t, prep.RawTarget[1]-prep.RawTarget[0], prep.Target.Values[1], 1e-12)

	u, err := prep.Table.Column(preprocessing.ColU100)
	require.NoError(t, err)
	uRaw, err := prep.Aggregated.Column(preprocessing.ColU100)
	require.NoError(t, err)
	assert.InDelta(t, uRaw[2]-uRaw[1], u[2], 1e-12)

	opts := quickOptions(preprocessing.ProfileGPU)
	opts.RawFeatures = true
	prep, err = Prepare(raw, y, opts)
	require.NoError(t, err)
	u, err = prep.Table.Column(preprocessing.ColU100)
	require.NoError(t, err)
	assert.Equal(t, uRaw, u)
}

func TestRunProfiles(t *testing.T) {
	raw, y := simulated(t, []string{"WF1"}, 300)

	for _, profile := range preprocessing.Profiles() {
		t.Run(profile.Name, func(t *testing.T) {
			res, err := Run(context.Background(), raw, y, quickOptions(profile), quiet())
			require.NoError(t, err)

			assert.Equal(t, profile.Name, res.Profile)
			assert.Equal(t, string(profile.Policy), res.Policy)
			assert.Equal(t, 270, res.Rows, "only Train rows are used")
			assert.Equal(t, preprocessing.AggregatedColumns, res.Features)
			require.Len(t, res.Importance.Records, len(preprocessing.AggregatedColumns))

			require.NotNil(t, res.Native)
			assert.Equal(t, res.Importance.Base.HoldoutRows, res.Native.Rows)
			assert.Empty(t, res.Native.SkippedGroups)
			assert.False(t, math.IsNaN(res.Native.CAPE))
			assert.GreaterOrEqual(t, res.Native.CAPE, 0.0)
			for _, v := range res.Native.Truth {
				assert.Positive(t, v)
			}
		})
	}

	assert.True(t, raw.HasColumn("NWP1_00h_D-1_U"))
	assert.False(t, raw.HasColumn(preprocessing.ColU100), "raw table must not be modified")
}

func TestRunGroupedHoldout(t *testing.T) {
	raw, y := simulated(t, []string{"WF1", "WF2"}, 160)

	opts := quickOptions(preprocessing.ProfileGPU)
	opts.Features = []string{preprocessing.ColU100, preprocessing.ColV100, preprocessing.ColT}
	res, err := Run(context.Background(), raw, y, opts, quiet())
	require.NoError(t, err)

	// 288 Train rows, 36 holdout rows all from WF2, anchored on WF2's last earlier row
	assert.Equal(t, 288, res.Rows)
	require.NotNil(t, res.Native)
	assert.Equal(t, 36, res.Native.Rows)
	assert.Len(t, res.Importance.Records, 3)
}

func TestRevertHoldoutUsesGroupAnchor(t *testing.T) {
	table, err := frame.New(
		frame.Index{IDs: []int64{1, 2, 3, 4, 5}, Groups: []string{"WF1", "WF1", "WF2", "WF2", "WF1"}},
		frame.Column{Name: "x", Values: []float64{0, 0, 0, 0, 0}},
	)
	require.NoError(t, err)
	yRaw := []float64{5, 6, 50, 52, 8}
	base := &lofo.Evaluation{HoldoutStart: 3, Predictions: []float64{1, 2}}

	native, err := revertHoldout(table, yRaw, base, preprocessing.Differencer{})
	require.NoError(t, err)
	// WF2 anchors on 50, WF1 on 6
	assert.Equal(t, []float64{51, 8}, native.Predictions)
	assert.Equal(t, []float64{52, 8}, native.Truth)
	assert.Equal(t, []int64{4, 5}, native.IDs)
	assert.InDelta(t, 100*1.0/60, native.CAPE, 1e-12)

	t.Run("group without history", func(t *testing.T) {
		table, err := frame.New(
			frame.Index{IDs: []int64{1, 2, 3}, Groups: []string{"WF1", "WF1", "WF3"}},
			frame.Column{Name: "x", Values: []float64{0, 0, 0}},
		)
		require.NoError(t, err)
		native, err := revertHoldout(table, []float64{1, 2, 3}, &lofo.Evaluation{HoldoutStart: 1, Predictions: []float64{1, 0.5}}, preprocessing.Differencer{})
		require.NoError(t, err)
		assert.Equal(t, []string{"WF3"}, native.SkippedGroups)
		assert.Equal(t, 1, native.Rows)
		assert.Equal(t, []float64{2}, native.Predictions)
	})
}

func TestRunErrors(t *testing.T) {
	raw, y := simulated(t, []string{"WF1"}, 120)

	t.Run("unknown feature", func(t *testing.T) {
		opts := quickOptions(preprocessing.ProfileGPU)
		opts.Features = []string{preprocessing.ColU100, "gust"}
		_, err := Run(context.Background(), raw, y, opts, quiet())
		var schemaErr *errors.SchemaError
		assert.True(t, errors.As(err, &schemaErr))
	})

	t.Run("log-difference on zero production", func(t *testing.T) {
		values := append([]float64(nil), y.Values...)
		values[10] = 0
		zero, err := frame.NewSeries(y.Name, y.IDs, values)
		require.NoError(t, err)
		_, err = Run(context.Background(), raw, zero, quickOptions(preprocessing.ProfileCPU), quiet())
		var domainErr *errors.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, 10, domainErr.Index)
	})

	t.Run("empty partition", func(t *testing.T) {
		opts := quickOptions(preprocessing.ProfileGPU)
		opts.Partition = "Validation"
		_, err := Run(context.Background(), raw, y, opts, quiet())
		var insufficient *errors.InsufficientDataError
		assert.True(t, errors.As(err, &insufficient))
	})
}

func TestLoad(t *testing.T) {
	raw, y := simulated(t, []string{"WF1"}, 40)
	dir := t.TempDir()

	writeTable := func(name string, tbl *frame.Table) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		require.NoError(t, frame.WriteCSV(f, tbl))
		return path
	}
	xTrain := writeTable("X_train.csv", raw.Partition(frame.PartitionTrain))
	xTest := writeTable("X_test.csv", raw.Partition(frame.PartitionTest))

	yPath := filepath.Join(dir, "Y_train.csv")
	content := "ID,Production\n"
	for i, id := range y.IDs {
		content += formatRow(id, y.Values[i])
	}
	require.NoError(t, os.WriteFile(yPath, []byte(content), 0o600))

	table, target, err := Load(Inputs{XTrain: xTrain, XTest: xTest, YTrain: yPath})
	require.NoError(t, err)
	assert.Equal(t, raw.Len(), table.Len())
	assert.Equal(t, raw.Partition(frame.PartitionTest).Len(), table.Partition(frame.PartitionTest).Len())
	assert.Equal(t, y.IDs, target.IDs)
	assert.InDeltaSlice(t, y.Values, target.Values, 1e-12)

	_, _, err = Load(Inputs{XTrain: filepath.Join(dir, "missing.csv"), YTrain: yPath})
	assert.Error(t, err)
}

func formatRow(id int64, v float64) string {
	return strconv.FormatInt(id, 10) + "," + strconv.FormatFloat(v, 'g', -1, 64) + "\n"
}
