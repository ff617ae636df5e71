// Command ev explores machine-learning experiment logs. It opens CSV, TSV
// and XLSX logs in a terminal viewer, serves them over HTTP and exports
// metric charts and summaries.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/expview/pkg/config"
	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Error loading .env file", "err", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds state shared by every subcommand.
type cli struct {
	cfg        config.Config
	configPath string
	debug      bool
	cpuProfile string
	profile    *os.File
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.DefaultConfig()}

	root := &cobra.Command{
		Use:   "ev",
		Short: "Explore machine-learning experiment logs",
		Long: `ev reads experiment logs with one row per (experiment, metric, step)
and plots a metric for the experiments you pick.

Logs are CSV, TSV or XLSX files with the columns experiment_id, model_type,
learning_rate, metric_name, step and value.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: c.teardown,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/ev/config.yaml)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Log debug output and record timings")
	root.PersistentFlags().StringVar(&c.cpuProfile, "cpu-profile", "", "Write CPU profile to file")

	root.AddCommand(
		c.newViewCmd(),
		c.newServeCmd(),
		c.newExportCmd(),
		c.newSummaryCmd(),
		c.newStatsCmd(),
		newVersionCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.debug {
		debug.SetEnabled(true)
		metrics.SetEnabled(true)
	}
	setupLogging(c.debug || debug.Enabled())

	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFrom(c.configPath)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		if c.configPath != "" {
			return err
		}
		slog.Warn("Ignoring unreadable config", "path", config.ConfigPath(), "err", err)
		c.cfg = config.DefaultConfig()
	}
	config.ApplyEnv(&c.cfg)

	if c.cpuProfile != "" {
		f, err := os.Create(c.cpuProfile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		c.profile = f
	}
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) {
	if c.profile != nil {
		pprof.StopCPUProfile()
		c.profile.Close()
		c.profile = nil
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ev version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ev %s\n", version.Version)
		},
	}
}
