// Package config loads windlofo run files and environment overrides.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/lofo"
	"github.com/YuminosukeSato/windlofo/pipeline"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
	"github.com/YuminosukeSato/windlofo/pkg/log"
	"github.com/YuminosukeSato/windlofo/preprocessing"
)

// Environment variables that override the run file.
const (
	EnvLogLevel  = "WINDLOFO_LOG_LEVEL"
	EnvLogFormat = "WINDLOFO_LOG_FORMAT"
	EnvWorkers   = "WINDLOFO_WORKERS"
)

// Config is a complete run description.
type Config struct {
	Data    DataConfig `yaml:"data"`
	Profile string     `yaml:"profile"`
	// Features to rank; empty ranks every aggregated column.
	Features    []string     `yaml:"features"`
	RawFeatures bool         `yaml:"raw_features"`
	LOFO        lofo.Config  `yaml:"lofo"`
	Output      OutputConfig `yaml:"output"`
	Log         LogConfig    `yaml:"log"`
}

// DataConfig locates the CNR files and describes their layout.
type DataConfig struct {
	XTrain      string `yaml:"x_train"`
	XTest       string `yaml:"x_test"`
	YTrain      string `yaml:"y_train"`
	Target      string `yaml:"target"`
	IDColumn    string `yaml:"id_column"`
	TimeColumn  string `yaml:"time_column"`
	GroupColumn string `yaml:"group_column"`
	TimeLayout  string `yaml:"time_layout"`
}

// OutputConfig names the report files. Relative paths are resolved against Dir; empty
// names are skipped.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	CSV  string `yaml:"csv"`
	JSON string `yaml:"json"`
	Plot string `yaml:"plot"`
	HTML string `yaml:"html"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a run over Data/X_train.csv and Data/Y_train.csv with the
// median-diff profile.
func Default() *Config {
	csv := frame.DefaultCSVOptions()
	return &Config{
		Data: DataConfig{
			XTrain:      filepath.Join("Data", "X_train.csv"),
			YTrain:      filepath.Join("Data", "Y_train.csv"),
			Target:      "Production",
			IDColumn:    csv.IDColumn,
			TimeColumn:  csv.TimeColumn,
			GroupColumn: csv.GroupColumn,
			TimeLayout:  csv.TimeLayout,
		},
		Profile: preprocessing.ProfileGPU.Name,
		LOFO:    lofo.DefaultConfig(),
		Output: OutputConfig{
			Dir:  "out",
			CSV:  "importance.csv",
			JSON: "result.json",
			Plot: "importance.png",
			HTML: "importance.html",
		},
		Log: LogConfig{Level: "info", Format: string(log.FormatJSON)},
	}
}

// Load reads a YAML run file over the defaults. Unknown keys are rejected. Booster
// params are merged into the default params.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the first existing .env file among paths, or ./.env when none are given.
// Variables already set in the process win. A missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return errors.Wrapf(godotenv.Load(path), "load %s", path)
	}
	return nil
}

// ApplyEnv overrides log settings and worker count from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError(EnvWorkers, "expected an integer", v)
		}
		c.LOFO.Workers = n
	}
	return c.Validate()
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.Data.XTrain == "" {
		return errors.NewValidationError("data.x_train", "is required", c.Data.XTrain)
	}
	if c.Data.YTrain == "" {
		return errors.NewValidationError("data.y_train", "is required", c.Data.YTrain)
	}
	if _, err := preprocessing.LookupProfile(c.Profile); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch log.Format(c.Log.Format) {
	case log.FormatJSON, log.FormatConsole:
	default:
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	return c.LOFO.Validate()
}

// Inputs returns the file locations for pipeline.Load.
func (c *Config) Inputs() pipeline.Inputs {
	return pipeline.Inputs{
		XTrain:     c.Data.XTrain,
		XTest:      c.Data.XTest,
		YTrain:     c.Data.YTrain,
		TargetName: c.Data.Target,
		CSV: frame.CSVOptions{
			IDColumn:        c.Data.IDColumn,
			TimeColumn:      c.Data.TimeColumn,
			GroupColumn:     c.Data.GroupColumn,
			TimeLayout:      c.Data.TimeLayout,
			PartitionColumn: "Set",
		},
	}
}

// Options returns the pipeline options of the run.
func (c *Config) Options() (pipeline.Options, error) {
	profile, err := preprocessing.LookupProfile(c.Profile)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Profile:     profile,
		Features:    c.Features,
		LOFO:        c.LOFO,
		Partition:   frame.PartitionTrain,
		RawFeatures: c.RawFeatures,
	}, nil
}

// OutputPath resolves name against the output directory. Empty names stay empty.
func (c *Config) OutputPath(name string) string {
	if name == "" || filepath.IsAbs(name) || c.Output.Dir == "" {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}
