package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
)

// envPrefix selects environment variables that feed world settings,
// e.g. TICKWORLD_STRATEGY=parallel.
const envPrefix = "TICKWORLD_"

// worldFlags are the flags shared by run and replay.
//
// Precedence, lowest first: the config file's "world" section, TICKWORLD_*
// environment variables, then flags given on the command line.
type worldFlags struct {
	configPath   string
	scenario     string
	set          map[string]string
	strategy     string
	workers      int
	joinTimeout  time.Duration
	maxAgents    int
	maxBatch     int
	addressing   bool
	journalPath  string
	runID        string
	verbose      bool
	logFormat    string
	printBatches bool
	idle         bool
}

func (f *worldFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML or JSON config file")
	fs.StringVarP(&f.scenario, "scenario", "s", "counters", "scenario to build (see `tickworld scenarios`)")
	fs.StringToStringVar(&f.set, "set", nil, "scenario parameters, e.g. --set agents=500")
	fs.StringVar(&f.strategy, "strategy", "", "runner strategy: sequential, cooperative or parallel")
	fs.IntVar(&f.workers, "workers", 0, "parallel pool size (default GOMAXPROCS)")
	fs.DurationVar(&f.joinTimeout, "join-timeout", 0, "abort a tick whose agents take longer than this")
	fs.IntVar(&f.maxAgents, "max-agents", 0, "bound on the live population")
	fs.IntVar(&f.maxBatch, "max-batch", 0, "bound on messages per batch")
	fs.BoolVar(&f.addressing, "addressing", false, "deliver addressed messages only to their recipient")
	fs.StringVar(&f.journalPath, "journal", "", "SQLite journal file")
	fs.StringVar(&f.runID, "run-id", "", "run identifier (default random)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every tick")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&f.printBatches, "print-batches", false, "print every finalized batch")
	fs.BoolVar(&f.idle, "idle", false, "deliver an idle tick message when a batch is empty")
}

// load resolves world settings and scenario parameters.
func (f *worldFlags) load(cmd *cobra.Command) (tickworld.Settings, config.Config, error) {
	file := config.New(nil)
	if f.configPath != "" {
		var err error
		if file, err = config.FromFile(f.configPath); err != nil {
			return tickworld.Settings{}, config.Config{}, err
		}
	}

	worldCfg := file.Sub("world").Merge(config.FromEnv(envPrefix, os.Environ()))
	settings, err := tickworld.SettingsFromConfig(worldCfg)
	if err != nil {
		return tickworld.Settings{}, config.Config{}, fmt.Errorf("world settings: %w", err)
	}

	fs := cmd.Flags()
	if fs.Changed("strategy") {
		if settings.Strategy, err = tickworld.ParseStrategy(f.strategy); err != nil {
			return tickworld.Settings{}, config.Config{}, err
		}
	}
	if fs.Changed("workers") {
		if f.workers < 1 {
			return tickworld.Settings{}, config.Config{}, fmt.Errorf("--workers must be > 0")
		}
		settings.Workers = f.workers
	}
	if fs.Changed("join-timeout") {
		settings.JoinTimeout = f.joinTimeout
	}
	if fs.Changed("max-agents") {
		settings.MaxAgents = f.maxAgents
	}
	if fs.Changed("max-batch") {
		settings.MaxBatch = f.maxBatch
	}
	if fs.Changed("addressing") {
		settings.Addressing = f.addressing
	}
	if fs.Changed("run-id") {
		settings.RunID = f.runID
	}

	scenarioCfg := file.Sub("scenario")
	if len(f.set) > 0 {
		params := make(map[string]any, len(f.set))
		for k, v := range f.set {
			params[k] = v
		}
		scenarioCfg = scenarioCfg.Merge(config.New(params))
	}
	return settings, scenarioCfg, nil
}

// logger builds the CLI logger. Tick-level logs are only shown with --verbose.
func (f *worldFlags) logger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	switch f.logFormat {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", f.logFormat)
}
