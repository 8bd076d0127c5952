package pipeline

import (
	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Inputs names the CNR files of a run.
type Inputs struct {
	XTrain string
	// XTest is optional. Its rows are tagged Test and carry no targets.
	XTest       string
	YTrain      string
	TargetName  string
	CSV         frame.CSVOptions
	TargetIDCol string
}

// Load reads the feature files, stacks train and test rows and reads the target.
func Load(in Inputs) (*frame.Table, frame.Series, error) {
	opts := in.CSV
	if opts.IDColumn == "" {
		opts = frame.DefaultCSVOptions()
	}
	idCol := in.TargetIDCol
	if idCol == "" {
		idCol = opts.IDColumn
	}
	name := in.TargetName
	if name == "" {
		name = "Production"
	}

	opts.Partition = frame.PartitionTrain
	table, err := frame.ReadCSVFile(in.XTrain, opts)
	if err != nil {
		return nil, frame.Series{}, err
	}
	if in.XTest != "" {
		opts.Partition = frame.PartitionTest
		test, err := frame.ReadCSVFile(in.XTest, opts)
		if err != nil {
			return nil, frame.Series{}, err
		}
		if table, err = frame.Concat(table, test); err != nil {
			return nil, frame.Series{}, errors.Wrap(err, "stack train and test features")
		}
	}

	target, err := frame.ReadSeriesCSVFile(in.YTrain, idCol, name)
	if err != nil {
		return nil, frame.Series{}, err
	}
	return table, target, nil
}
