// Package pipeline wires CNR ingestion, ensemble aggregation, stabilization and LOFO
// into one run, and scores the baseline holdout back on the production scale.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/metrics"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/preprocessing"
)

// Options configures Run.
type Options struct {
	Profile preprocessing.Profile
	// Features to rank. Empty means every column of the prepared table.
	Features []string
	LOFO     lofo.Config
	// Partition selects the rows that carry targets.
	Partition frame.Partition
	// RawFeatures skips first-differencing of the feature columns.
	RawFeatures bool
}

// DefaultOptions uses the median-diff profile on the Train rows.
func DefaultOptions() Options {
	return Options{
		Profile:   preprocessing.ProfileGPU,
		LOFO:      lofo.DefaultConfig(),
		Partition: frame.PartitionTrain,
	}
}

// NativeHoldout is the baseline holdout evaluated on the production scale.
type NativeHoldout struct {
	Rows        int                 `json:"rows"`
	CAPE        float64             `json:"cape"`
	Diagnostics metrics.Diagnostics `json:"diagnostics"`
	IDs         []int64             `json:"-"`
	Truth       []float64           `json:"-"`
	Predictions []float64           `json:"-"`
	// SkippedGroups had no row before the holdout to anchor the revert on.
	SkippedGroups []string `json:"skipped_groups,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	Profile    string         `json:"profile"`
	Policy     string         `json:"policy"`
	Rows       int            `json:"rows"`
	Features   []string       `json:"features"`
	Importance *lofo.Table    `json:"importance"`
	Native     *NativeHoldout `json:"native_holdout,omitempty"`
	Duration   time.Duration  `json:"duration_ns"`
}

// Prepared is a run's input after aggregation and stabilization.
type Prepared struct {
	// Aggregated holds the selected rows on the original scale.
	Aggregated *frame.Table
	// Table holds the features LOFO sees.
	Table *frame.Table
	// Target is the stabilized target aligned with Table.
	Target     frame.Series
	RawTarget  []float64
	Features   []string
	Stabilizer preprocessing.Stabilizer
}

// Prepare selects the partition, collapses the weather ensemble when raw still has
// member columns, and stabilizes target and features per group.
func Prepare(raw *frame.Table, target frame.Series, opts Options) (*Prepared, error) {
	if opts.Partition == "" {
		opts.Partition = frame.PartitionTrain
	}
	rows := raw.Partition(opts.Partition)
	if rows.Len() == 0 {
		return nil, errors.NewInsufficientDataError("pipeline.Prepare", 0, 1, "no rows in partition "+string(opts.Partition))
	}

	aggregated := rows
	if len(preprocessing.EnsembleMembers(rows.Columns())) > 0 {
		var err error
		if aggregated, err = opts.Profile.Prepare(rows); err != nil {
			return nil, err
		}
	}
	features := opts.Features
	if len(features) == 0 {
		features = aggregated.Columns()
	}

	yRaw, err := aggregated.Align(target)
	if err != nil {
		return nil, err
	}
	stabilizer, err := opts.Profile.Stabilizer()
	if err != nil {
		return nil, err
	}
	yStab, err := preprocessing.StabilizeByGroup(stabilizer, yRaw, aggregated.GroupRows())
	if err != nil {
		return nil, errors.Wrap(err, "stabilize target")
	}
	table := aggregated
	if !opts.RawFeatures {
		if table, err = preprocessing.StabilizeColumns(aggregated, preprocessing.Differencer{}, features...); err != nil {
			return nil, errors.Wrap(err, "stabilize features")
		}
	}
	stabTarget, err := table.SeriesFrom(target.Name, yStab)
	if err != nil {
		return nil, err
	}
	return &Prepared{
		Aggregated: aggregated,
		Table:      table,
		Target:     stabTarget,
		RawTarget:  yRaw,
		Features:   features,
		Stabilizer: stabilizer,
	}, nil
}

// Run prepares raw, ranks features with LOFO on the stabilized target and reverts the
// baseline holdout predictions to the production scale. raw and target are not modified.
func Run(ctx context.Context, raw *frame.Table, target frame.Series, opts Options, lofoOpts ...lofo.Option) (*Result, error) {
	began := time.Now()
	logger := log.GetLoggerWithName("pipeline").With(log.ProfileKey, opts.Profile.Name)

	prep, err := Prepare(raw, target, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Data prepared",
		log.SamplesKey, prep.Table.Len(),
		log.FeaturesKey, len(prep.Features),
		log.OperationKey, log.OperationStabilize,
		"policy", string(prep.Stabilizer.Policy()),
	)

	agg, err := lofo.NewAggregator(opts.LOFO, lofoOpts...)
	if err != nil {
		return nil, err
	}
	importance, err := agg.Run(ctx, prep.Table, prep.Target, prep.Features)
	if err != nil {
		return nil, err
	}

	native, err := RevertHoldout(prep, importance.Base)
	if err != nil {
		return nil, err
	}
	if native.Rows > 0 {
		logger.Info("Native-scale holdout scored", log.CAPEKey, native.CAPE, log.HoldoutRowsKey, native.Rows)
	}
	for _, g := range native.SkippedGroups {
		logger.Warn("Group has no history before the holdout, left out of native scoring", log.GroupKey, g)
	}

	return &Result{
		Profile:    opts.Profile.Name,
		Policy:     string(prep.Stabilizer.Policy()),
		Rows:       prep.Table.Len(),
		Features:   prep.Features,
		Importance: importance,
		Native:     native,
		Duration:   time.Since(began),
	}, nil
}

// RevertHoldout scores an evaluation's holdout predictions on the production scale.
func RevertHoldout(prep *Prepared, ev *lofo.Evaluation) (*NativeHoldout, error) {
	return revertHoldout(prep.Aggregated, prep.RawTarget, ev, prep.Stabilizer)
}

// revertHoldout turns the baseline's stabilized holdout predictions into production
// values. Each group is reverted from its last true value before the holdout.
func revertHoldout(table *frame.Table, yRaw []float64, base *lofo.Evaluation, s preprocessing.Stabilizer) (*NativeHoldout, error) {
	start := base.HoldoutStart
	segments := make(map[string][]int)
	for i := start; i < table.Len(); i++ {
		g := table.Group(i)
		segments[g] = append(segments[g], i-start)
	}
	anchors := make(map[string]float64, len(segments))
	var skipped []string
	for g := range segments {
		anchor, ok := lastBefore(table, yRaw, g, start)
		if !ok {
			skipped = append(skipped, g)
			delete(segments, g)
			continue
		}
		anchors[g] = anchor
	}
	sort.Strings(skipped)
	if len(segments) == 0 {
		return &NativeHoldout{SkippedGroups: skipped}, nil
	}

	reverted, err := preprocessing.RevertByGroup(s, base.Predictions, segments, anchors)
	if err != nil {
		return nil, errors.Wrap(err, "revert holdout predictions")
	}
	out := &NativeHoldout{SkippedGroups: skipped}
	ids := table.IDs()
	for i := start; i < table.Len(); i++ {
		if _, ok := anchors[table.Group(i)]; !ok {
			continue
		}
		out.IDs = append(out.IDs, ids[i])
		out.Truth = append(out.Truth, yRaw[i])
		out.Predictions = append(out.Predictions, reverted[i-start])
	}
	out.Rows = len(out.Truth)
	if out.CAPE, err = metrics.CAPE(out.Truth, out.Predictions); err != nil {
		return nil, err
	}
	if out.Diagnostics, err = metrics.Diagnose(out.Truth, out.Predictions); err != nil {
		return nil, err
	}
	return out, nil
}

func lastBefore(table *frame.Table, y []float64, group string, end int) (float64, bool) {
	for i := end - 1; i >= 0; i-- {
		if table.Group(i) == group {
			return y[i], true
		}
	}
	return 0, false
}
