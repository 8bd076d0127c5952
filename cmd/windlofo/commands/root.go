package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/windlofo/pkg/config"
	"github.com/YuminosukeSato/windlofo/pkg/log"
)

var (
	// Global flags
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	cpuProfile string

	cfg      *config.Config
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "windlofo",
	Short: "Leave-one-feature-out importance for wind-farm production forecasts",
	Long: `windlofo ranks the features of a wind-farm production model by how much the
holdout CAPE changes when each one is left out.

Examples:
  windlofo simulate --out Data
  windlofo run --config windlofo.yaml
  windlofo evaluate --exclude U_100m`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML run file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with WINDLOFO_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error, overrides the run file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "json|console, overrides the run file")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile into this directory")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := log.Setup(cmd.ErrOrStderr(), cfg.Log.Level, log.Format(cfg.Log.Format)); err != nil {
		return err
	}
	if cpuProfile != "" {
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(cpuProfile), profile.Quiet, profile.NoShutdownHook)
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if profiler != nil {
		profiler.Stop()
		profiler = nil
	}
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM so a sweep stops between features.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
