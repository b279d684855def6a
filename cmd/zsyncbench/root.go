package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logFormat  string
	logLevel   string

	workers    int
	iterations int
	keys       int
	rate       int
	burst      int
	pruneEvery time.Duration
	listen     string
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:          "zsyncbench",
		Short:        "Contention harness for zsync cells and rate limiters",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.IntVar(&f.workers, "workers", 0, "concurrent workers (overrides config)")
	pf.IntVar(&f.iterations, "iterations", 0, "operations per worker (overrides config)")

	counter := &cobra.Command{
		Use:   "counter",
		Short: "Increment one cell from many goroutines and check for lost updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, _, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			res, err := runCounter(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "counter: workers=%d iterations=%d final=%d elapsed=%s\n",
				cfg.Workers, cfg.Iterations, res.Got, res.Elapsed)
			return nil
		},
	}

	limit := &cobra.Command{
		Use:   "limit",
		Short: "Drive a keyed GCRA limiter and report admitted and denied requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, lv, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			res, err := runLimit(cmd.Context(), cfg, logger, lv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "limit: keys=%d allowed=%d denied=%d pruned=%d elapsed=%s\n",
				cfg.Keys, res.Allowed, res.Denied, res.Pruned, res.Elapsed)
			return nil
		},
	}
	lf := limit.Flags()
	lf.IntVar(&f.keys, "keys", 0, "distinct keys (overrides config)")
	lf.IntVar(&f.rate, "rate", 0, "admitted units per period (overrides config)")
	lf.IntVar(&f.burst, "burst", 0, "burst size (overrides config)")
	lf.DurationVar(&f.pruneEvery, "prune-every", 0, "background prune interval, 0 disables it (overrides config)")
	lf.StringVar(&f.listen, "listen", "", "serve the diagnostics endpoints on this address during the run")

	root.AddCommand(counter, limit)
	return root
}

// resolve loads the config file, applies flags that were set explicitly and
// builds the logger along with its level control.
func (f *rootFlags) resolve(cmd *cobra.Command) (Config, *slog.Logger, *slog.LevelVar, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if flags.Changed("keys") {
		cfg.Keys = f.keys
	}
	if flags.Changed("rate") {
		cfg.Rate = f.rate
	}
	if flags.Changed("burst") {
		cfg.Burst = f.burst
	}
	if flags.Changed("prune-every") {
		cfg.PruneEvery = f.pruneEvery
	}
	if flags.Changed("listen") {
		cfg.Listen = f.listen
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, nil, err
	}
	logger, lv, err := newLogger(cmd.ErrOrStderr(), f.logFormat, f.logLevel)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, logger, lv, nil
}
