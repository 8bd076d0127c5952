package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/report"
)

// simulateCmd writes a synthetic CNR-shaped data set.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Write a synthetic wind-farm data set in the CNR layout",
	Long: `Generates weather-ensemble forecasts and production for synthetic farms and
writes X_train.csv and Y_train.csv. Rows tagged Test by --test-fraction stay in
X_train.csv with Set=Test and carry no target row.

Example:
  windlofo simulate --out Data --farms WF1,WF2 --hours 2000`,
	RunE: runSimulate,
}

var (
	simOut          string
	simFarms        []string
	simHours        int
	simRuns         int
	simSeed         uint64
	simTestFraction float64
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	def := frame.DefaultSimConfig()
	simulateCmd.Flags().StringVar(&simOut, "out", "Data", "output directory")
	simulateCmd.Flags().StringSliceVar(&simFarms, "farms", def.Farms, "farm names")
	simulateCmd.Flags().IntVar(&simHours, "hours", def.Hours, "hourly rows per farm")
	simulateCmd.Flags().IntVar(&simRuns, "runs", def.Runs, "forecast runs per weather model")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", def.Seed, "random seed")
	simulateCmd.Flags().Float64Var(&simTestFraction, "test-fraction", 0, "trailing share of each farm tagged Test")
}

func runSimulate(_ *cobra.Command, _ []string) error {
	sim := frame.DefaultSimConfig()
	sim.Farms = simFarms
	sim.Hours = simHours
	sim.Runs = simRuns
	sim.Seed = simSeed
	sim.TestFraction = simTestFraction

	x, y, err := frame.SimulateWindFarm(sim)
	if err != nil {
		return err
	}
	y = trainTargets(x, y)

	if err := os.MkdirAll(simOut, 0o755); err != nil {
		return err
	}
	xPath := filepath.Join(simOut, "X_train.csv")
	yPath := filepath.Join(simOut, "Y_train.csv")
	if err := report.SaveFile(xPath, func(w io.Writer) error { return frame.WriteCSV(w, x) }); err != nil {
		return err
	}
	if err := report.SaveFile(yPath, func(w io.Writer) error { return frame.WriteSeriesCSV(w, y, "ID") }); err != nil {
		return err
	}
	log.GetLoggerWithName("cli").Info("Data set written",
		log.SamplesKey, x.Len(),
		log.FeaturesKey, len(x.Columns()),
		"x_path", xPath,
		"y_path", yPath,
	)
	return nil
}

// trainTargets keeps the target rows of the Train partition only.
func trainTargets(x *frame.Table, y frame.Series) frame.Series {
	train := make(map[int64]bool)
	for _, id := range x.Partition(frame.PartitionTrain).IDs() {
		train[id] = true
	}
	out := frame.Series{Name: y.Name}
	for i, id := range y.IDs {
		if train[id] {
			out.IDs = append(out.IDs, id)
			out.Values = append(out.Values, y.Values[i])
		}
	}
	return out
}
