package lofo

import (
	"fmt"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/lightgbm"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// ActiveFeatures returns features without featureOut, keeping order. An empty featureOut
// returns a copy of features. featureOut must be one of features.
func ActiveFeatures(features []string, featureOut string) ([]string, error) {
	out := make([]string, 0, len(features))
	found := featureOut == ""
	for _, f := range features {
		if f == featureOut {
			found = true
			continue
		}
		out = append(out, f)
	}
	if !found {
		return nil, errors.NewSchemaError("lofo.ActiveFeatures", featureOut, "excluded feature is not in the feature set")
	}
	return out, nil
}

// BuildDataset materializes the rows of table as a booster dataset over
// features minus featureOut, in feature order. target must be aligned with the rows.
// table is not modified; the excluded column is dropped from a view first.
func BuildDataset(table *frame.Table, target []float64, features []string, featureOut string) (*lightgbm.Dataset, error) {
	if len(target) != table.Len() {
		return nil, errors.NewSchemaError("lofo.BuildDataset", "target", fmt.Sprintf("expected %d values, got %d", table.Len(), len(target)))
	}
	active, err := ActiveFeatures(features, featureOut)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, errors.NewSchemaError("lofo.BuildDataset", featureOut, "no features left after exclusion")
	}
	view := table
	if featureOut != "" {
		if view, err = table.Drop(featureOut); err != nil {
			return nil, err
		}
	}
	X, err := view.Matrix(active)
	if err != nil {
		return nil, err
	}
	return lightgbm.NewDataset(X, target, lightgbm.WithFeatureNames(active))
}
