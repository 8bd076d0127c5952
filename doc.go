// Package windlofo ranks the features of wind-farm production forecasts by
// Leave-One-Feature-Out (LOFO) importance.
//
// A model is trained on chronological folds with a warm-started gradient-boosted
// booster and scored with CAPE, the cumulated absolute percentage error used by the
// CNR wind-power challenge, on a trailing holdout. Each feature is then dropped in
// turn and the change in holdout CAPE becomes its importance.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/YuminosukeSato/windlofo/frame"
//	    "github.com/YuminosukeSato/windlofo/pipeline"
//	    "github.com/YuminosukeSato/windlofo/report"
//	)
//
//	func main() {
//	    raw, production, err := frame.SimulateWindFarm(frame.DefaultSimConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    res, err := pipeline.Run(context.Background(), raw, production, pipeline.DefaultOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    report.WriteText(os.Stdout, res.Importance)
//	}
//
// # Packages
//
//   - frame: chronological feature table, CNR CSV ingestion, simulation
//   - preprocessing: ensemble aggregation, stabilizers and processing profiles
//   - metrics: CAPE and regression diagnostics
//   - lightgbm: pure-Go histogram GBDT with warm start and custom evaluation
//   - lofo: time-series split, cross-validated objective, importance aggregator
//   - pipeline: load, prepare, rank and score on the production scale
//   - report: CSV, JSON, text, plot and HTML output
//   - pkg/config: YAML run files and environment overrides
//   - pkg/errors, pkg/log: typed errors and structured logging
//   - core/parallel, core/model: worker pools and fitted-state tracking
//
// The windlofo command wraps the pipeline:
//
//	windlofo simulate --out Data
//	windlofo run --config windlofo.yaml
//
// # Score Sign
//
// Score is base CAPE minus the CAPE without the feature. CAPE is an error, so a
// negative Score means the model got worse without the feature.
package windlofo
