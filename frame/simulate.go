package frame

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// SimConfig parameterizes SimulateWindFarm.
type SimConfig struct {
	Farms []string
	Hours int
	Start time.Time
	Seed  uint64
	// Runs is the number of forecast runs per weather model.
	Runs int
	// TestFraction tags the trailing share of each farm's rows as Test.
	TestFraction float64
}

// DefaultSimConfig returns a single farm with 1000 hourly rows.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Farms: []string{"WF1"},
		Hours: 1000,
		Start: time.Date(2018, 5, 1, 1, 0, 0, 0, time.UTC),
		Seed:  42,
		Runs:  2,
	}
}

// SimulateWindFarm generates hourly weather-ensemble forecasts and production for
// synthetic wind farms, laid out like the CNR files: four weather models (NWP1..NWP4)
// with U/V wind components, temperature on NWP1 and NWP3, cloud cover on NWP4.
// Production follows a power curve of the true 100m wind speed and is always positive.
// The output is deterministic for a given Seed.
func SimulateWindFarm(cfg SimConfig) (*Table, Series, error) {
	if len(cfg.Farms) == 0 {
		return nil, Series{}, errors.NewValidationError("farms", "at least one farm is required", cfg.Farms)
	}
	if cfg.Hours < 2 {
		return nil, Series{}, errors.NewValidationError("hours", "must be at least 2", cfg.Hours)
	}
	if cfg.Runs < 1 {
		cfg.Runs = 1
	}
	if cfg.TestFraction < 0 || cfg.TestFraction >= 1 {
		return nil, Series{}, errors.NewValidationError("test_fraction", "must be in [0, 1)", cfg.TestFraction)
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultSimConfig().Start
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	names := simColumnNames(cfg.Runs)
	cols := make(map[string][]float64, len(names))

	var ix Index
	var production []float64
	id := int64(1)
	testFrom := cfg.Hours - int(math.Round(float64(cfg.Hours)*cfg.TestFraction))

	for _, farm := range cfg.Farms {
		speed := 6 + 2*rng.Float64()
		direction := rng.Float64() * 2 * math.Pi
		for h := 0; h < cfg.Hours; h++ {
			// AR(1) wind speed and slowly turning direction
			speed = math.Max(0.2, 0.95*speed+0.05*7.5+0.6*rng.NormFloat64())
			direction += 0.1 * rng.NormFloat64()
			ts := cfg.Start.Add(time.Duration(h) * time.Hour)
			u100 := speed * math.Cos(direction)
			v100 := speed * math.Sin(direction)
			temp := 12 + 6*math.Sin(2*math.Pi*float64(ts.Hour())/24) + rng.NormFloat64()
			cloud := 50 + 40*math.Sin(float64(h)/30)

			ix.IDs = append(ix.IDs, id)
			ix.Times = append(ix.Times, ts)
			ix.Groups = append(ix.Groups, farm)
			part := PartitionTrain
			if h >= testFrom {
				part = PartitionTest
			}
			ix.Partitions = append(ix.Partitions, part)
			id++

			for run := 0; run < cfg.Runs; run++ {
				for model := 1; model <= 4; model++ {
					prefix := simPrefix(model, run)
					noise := 0.3 + 0.2*float64(model)
					scale := 1.0
					if model == 4 {
						// 10m winds are weaker than hub-height winds
						scale = 0.7
					}
					cols[prefix+"_U"] = append(cols[prefix+"_U"], scale*u100+noise*rng.NormFloat64())
					cols[prefix+"_V"] = append(cols[prefix+"_V"], scale*v100+noise*rng.NormFloat64())
					if model == 1 || model == 3 {
						cols[prefix+"_T"] = append(cols[prefix+"_T"], temp+0.5*rng.NormFloat64())
					}
					if model == 4 {
						// cloud cover forecasts occasionally dip below zero
						cols[prefix+"_CLCT"] = append(cols[prefix+"_CLCT"], cloud+15*rng.NormFloat64()-5)
					}
				}
			}
			production = append(production, powerCurve(speed)+0.05*math.Abs(rng.NormFloat64())+0.01)
		}
	}

	columns := make([]Column, len(names))
	for k, name := range names {
		columns[k] = Column{Name: name, Values: cols[name]}
	}
	t, err := New(ix, columns...)
	if err != nil {
		return nil, Series{}, err
	}
	y, err := NewSeries("Production", t.IDs(), production)
	if err != nil {
		return nil, Series{}, err
	}
	return t, y, nil
}

func simPrefix(model, run int) string {
	return fmt.Sprintf("NWP%d_%02dh_D-1", model, 12*run)
}

func simColumnNames(runs int) []string {
	var names []string
	for run := 0; run < runs; run++ {
		for model := 1; model <= 4; model++ {
			prefix := simPrefix(model, run)
			names = append(names, prefix+"_U", prefix+"_V")
			if model == 1 || model == 3 {
				names = append(names, prefix+"_T")
			}
			if model == 4 {
				names = append(names, prefix+"_CLCT")
			}
		}
	}
	return names
}

// powerCurve maps wind speed in m/s to output in MW for a 3 MW turbine.
func powerCurve(speed float64) float64 {
	const (
		cutIn   = 3.0
		rated   = 12.0
		cutOut  = 25.0
		ratedMW = 3.0
	)
	switch {
	case speed < cutIn || speed > cutOut:
		return 0
	case speed >= rated:
		return ratedMW
	}
	x := (speed - cutIn) / (rated - cutIn)
	return ratedMW * x * x * x
}
