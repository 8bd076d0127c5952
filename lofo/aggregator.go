package lofo

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/windlofo/core/parallel"
	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

// Record is the importance of one feature.
//
// Score is the baseline CAPE minus the CAPE without the feature. CAPE is an error, so
// Score < 0 means removing the feature raised the error (the feature helps) and
// Score > 0 means the model did better without it. Ascending order therefore lists
// the most useful features first.
type Record struct {
	Feature       string        `json:"feature"`
	Score         float64       `json:"score"`
	ExcludedScore float64       `json:"excluded_score"`
	Duration      time.Duration `json:"duration_ns"`
}

// Beneficial reports whether leaving the feature out raised the holdout error.
func (r Record) Beneficial() bool {
	return r.Score < 0
}

// Table is the result of an importance run, with Records sorted ascending by Score.
type Table struct {
	BaseScore float64     `json:"base_score"`
	Base      *Evaluation `json:"base"`
	Records   []Record    `json:"records"`
}

// Features returns the feature names in record order.
func (t *Table) Features() []string {
	out := make([]string, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Feature
	}
	return out
}

// Lookup returns the record of feature.
func (t *Table) Lookup(feature string) (Record, bool) {
	for _, r := range t.Records {
		if r.Feature == feature {
			return r, true
		}
	}
	return Record{}, false
}

// Summary describes the score distribution of a Table.
type Summary struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Beneficial int     `json:"beneficial"`
	Harmful    int     `json:"harmful"`
}

// Summary returns the mean and standard deviation of the scores and how many features
// help or hurt.
func (t *Table) Summary() Summary {
	var s Summary
	if len(t.Records) == 0 {
		return s
	}
	scores := make([]float64, len(t.Records))
	for i, r := range t.Records {
		scores[i] = r.Score
		switch {
		case r.Beneficial():
			s.Beneficial++
		case r.Score > 0:
			s.Harmful++
		}
	}
	if len(scores) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(scores, nil)
	} else {
		s.Mean = scores[0]
	}
	return s
}

// Aggregator computes LOFO importance over a feature set.
type Aggregator struct {
	objective *Objective
	workers   int
	logger    log.Logger
}

// NewAggregator validates cfg and returns an Aggregator.
func NewAggregator(cfg Config, opts ...Option) (*Aggregator, error) {
	o := buildOptions("lofo", opts)
	objective, err := NewObjective(cfg, WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &Aggregator{objective: objective, workers: cfg.workers(), logger: o.logger}, nil
}

// Objective returns the objective used for every evaluation.
func (a *Aggregator) Objective() *Objective {
	return a.objective
}

// Run evaluates the baseline and then every feature left out in turn. The first
// failing evaluation aborts the run. ctx is checked between feature evaluations.
// With more than one worker, features are evaluated concurrently, each with its own
// booster.
func (a *Aggregator) Run(ctx context.Context, table *frame.Table, target frame.Series, features []string) (*Table, error) {
	if table == nil {
		return nil, errors.NewValueError("Aggregator.Run", "table is nil")
	}
	began := time.Now()
	a.logger.Info("LOFO started",
		log.SamplesKey, table.Len(),
		log.FeaturesKey, len(features),
		"lofo.workers", a.workers,
	)

	base, err := a.objective.Evaluate(ctx, table, target, features, "")
	if err != nil {
		a.logger.Error("Baseline evaluation failed", err)
		return nil, err
	}
	a.logger.Info("Baseline scored", log.CAPEKey, base.Score, log.DurationSecondsKey, base.Duration.Seconds())

	records := make([]Record, len(features))
	var done atomic.Int64
	err = parallel.ForEach(ctx, len(features), a.workers, func(ctx context.Context, i int) error {
		feature := features[i]
		ev, err := a.objective.Evaluate(ctx, table, target, features, feature)
		if err != nil {
			return err
		}
		records[i] = Record{
			Feature:       feature,
			Score:         base.Score - ev.Score,
			ExcludedScore: ev.Score,
			Duration:      ev.Duration,
		}
		k := done.Add(1)
		a.logger.Info("Feature evaluated",
			log.ProgressKey, fmt.Sprintf("%d/%d", k, len(features)),
			log.FeatureOutKey, feature,
			log.CAPEKey, ev.Score,
			log.ImportanceKey, records[i].Score,
			"seconds_per_iteration", ev.Duration.Seconds(),
		)
		return nil
	})
	if err != nil {
		a.logger.Error("LOFO aborted", err)
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score < records[j].Score
	})
	a.logger.Info("LOFO finished", log.DurationSecondsKey, time.Since(began).Seconds())
	return &Table{BaseScore: base.Score, Base: base, Records: records}, nil
}

// IsCanceled reports whether err came from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
