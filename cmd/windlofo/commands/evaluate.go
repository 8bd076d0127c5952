package commands

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pipeline"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/report"
)

// evaluateCmd runs a single objective evaluation.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score one feature set on the holdout",
	Long: `Runs the time-series CV and holdout scoring once, optionally with one feature
left out, and prints the evaluation as JSON. Without --exclude it scores the
baseline.

Example:
  windlofo evaluate
  windlofo evaluate --exclude CLCT`,
	RunE: runEvaluate,
}

var (
	evalExclude  string
	evalFeatures []string
)

// evaluateOutput is what evaluate prints.
type evaluateOutput struct {
	Profile    string                  `json:"profile"`
	Evaluation *lofo.Evaluation        `json:"evaluation"`
	Native     *pipeline.NativeHoldout `json:"native_holdout,omitempty"`
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalExclude, "exclude", "", "feature to leave out (default: none)")
	evaluateCmd.Flags().StringSliceVar(&evalFeatures, "features", nil, "feature set (default: every aggregated column)")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if len(evalFeatures) > 0 {
		cfg.Features = evalFeatures
	}
	prep, err := loadPrepared(cfg)
	if err != nil {
		return err
	}
	obj, err := lofo.NewObjective(cfg.LOFO)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	ev, err := obj.Evaluate(ctx, prep.Table, prep.Target, prep.Features, evalExclude)
	if err != nil {
		return err
	}
	native, err := pipeline.RevertHoldout(prep, ev)
	if err != nil {
		return err
	}
	log.GetLoggerWithName("cli").Info("Evaluation finished",
		log.FeatureOutKey, evalExclude,
		log.CAPEKey, ev.Score,
		log.DurationSecondsKey, ev.Duration.Seconds(),
	)
	return report.WriteJSON(cmd.OutOrStdout(), evaluateOutput{Profile: cfg.Profile, Evaluation: ev, Native: native})
}
