package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/windlofo/pipeline"
	"github.com/YuminosukeSato/windlofo/pkg/config"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/report"
)

// runCmd ranks every feature and writes the reports.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the LOFO sweep and write the importance reports",
	Long: `Loads the CNR files, aggregates the weather ensemble, stabilizes the target,
ranks each feature by leave-one-feature-out importance and writes the CSV, JSON,
plot and HTML reports named in the run file.

Example:
  windlofo run --config windlofo.yaml --workers 4
  windlofo run --profile mean-logdiff --features U_100m,V_100m,T`,
	RunE: runLOFO,
}

var (
	runWorkers  int
	runProfile  string
	runFeatures []string
	runOutDir   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "features evaluated concurrently (0 keeps the run file value)")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "median-diff|mean-logdiff, overrides the run file")
	runCmd.Flags().StringSliceVar(&runFeatures, "features", nil, "features to rank (default: every aggregated column)")
	runCmd.Flags().StringVar(&runOutDir, "out", "", "output directory, overrides the run file")
}

func runLOFO(cmd *cobra.Command, _ []string) error {
	applyRunFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli")

	raw, target, err := pipeline.Load(cfg.Inputs())
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	res, err := pipeline.Run(ctx, raw, target, opts)
	if err != nil {
		logger.Error("Run failed", err)
		return err
	}

	if err := writeReports(cfg, res); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.WriteText(out, res.Importance); err != nil {
		return err
	}
	if res.Native != nil && res.Native.Rows > 0 {
		fmt.Fprintf(out, "\nbaseline CAPE %.4f (stabilized), %.4f (production scale, %d rows)\n",
			res.Importance.BaseScore, res.Native.CAPE, res.Native.Rows)
	}
	logger.Info("Run finished", log.DurationSecondsKey, res.Duration.Seconds(), log.FeaturesKey, len(res.Features))
	return nil
}

func applyRunFlags(c *config.Config) {
	if runWorkers > 0 {
		c.LOFO.Workers = runWorkers
	}
	if runProfile != "" {
		c.Profile = runProfile
	}
	if len(runFeatures) > 0 {
		c.Features = runFeatures
	}
	if runOutDir != "" {
		c.Output.Dir = runOutDir
	}
}

func writeReports(c *config.Config, res *pipeline.Result) error {
	if c.Output.Dir != "" {
		if err := os.MkdirAll(c.Output.Dir, 0o755); err != nil {
			return err
		}
	}
	title := fmt.Sprintf("LOFO importance (%s)", res.Profile)

	if path := c.OutputPath(c.Output.CSV); path != "" {
		if err := report.SaveFile(path, func(w io.Writer) error { return report.WriteCSV(w, res.Importance) }); err != nil {
			return err
		}
	}
	if path := c.OutputPath(c.Output.JSON); path != "" {
		if err := report.SaveFile(path, func(w io.Writer) error { return report.WriteJSON(w, res) }); err != nil {
			return err
		}
	}
	if path := c.OutputPath(c.Output.Plot); path != "" {
		if err := report.SavePlot(res.Importance, path, title); err != nil {
			return err
		}
	}
	if path := c.OutputPath(c.Output.HTML); path != "" {
		var holdout *report.HoldoutSeries
		if res.Native != nil && res.Native.Rows > 0 {
			holdout = &report.HoldoutSeries{
				Title:       "Baseline holdout, production scale",
				IDs:         res.Native.IDs,
				Truth:       res.Native.Truth,
				Predictions: res.Native.Predictions,
			}
		}
		if err := report.SaveFile(path, func(w io.Writer) error { return report.RenderHTML(w, res.Importance, title, holdout) }); err != nil {
			return err
		}
	}
	return nil
}

// loadPrepared loads the configured files and prepares them the way run does.
func loadPrepared(c *config.Config) (*pipeline.Prepared, error) {
	raw, target, err := pipeline.Load(c.Inputs())
	if err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return pipeline.Prepare(raw, target, opts)
}
