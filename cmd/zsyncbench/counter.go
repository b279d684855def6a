package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evan-idocoding/zsync/rt/cell"
)

var errLostUpdate = errors.New("zsyncbench: lost update")

type counterResult struct {
	Want    int64
	Got     int64
	Elapsed time.Duration
}

func increment(n int64) (int64, bool, error) { return n + 1, true, nil }

// runCounter has cfg.Workers goroutines each apply cfg.Iterations increments to
// one cell. It fails with errLostUpdate if the final value is off.
func runCounter(ctx context.Context, cfg Config, logger *slog.Logger) (counterResult, error) {
	c := cell.New(int64(0))
	res := counterResult{Want: int64(cfg.Workers) * int64(cfg.Iterations)}

	logger.Info("counter run starting", "workers", cfg.Workers, "iterations", cfg.Iterations)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			for i := 0; i < cfg.Iterations; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := c.MeasureAndReplace(increment); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)
	res.Got = c.Snapshot()
	if err != nil {
		return res, err
	}
	if res.Got != res.Want {
		logger.Error("counter run lost updates", "want", res.Want, "got", res.Got)
		return res, fmt.Errorf("%w: want %d, got %d", errLostUpdate, res.Want, res.Got)
	}
	logger.Info("counter run done", "final", res.Got, "elapsed", res.Elapsed)
	return res, nil
}
