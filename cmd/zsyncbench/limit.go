package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"

	"github.com/evan-idocoding/zsync/ops"
	"github.com/evan-idocoding/zsync/rt/ratelimit"
	"github.com/evan-idocoding/zsync/rt/task"
)

type limitResult struct {
	Allowed int64
	Denied  int64
	Pruned  uint64
	Elapsed time.Duration
}

// runLimit spreads cfg.Workers*cfg.Iterations requests over cfg.Keys random keys
// of one keyed limiter. Idle keys are pruned every cfg.PruneEvery and once more
// at the end. If cfg.Listen is set, the diagnostics endpoints are served there
// for the duration of the run.
func runLimit(ctx context.Context, cfg Config, logger *slog.Logger, lv *slog.LevelVar) (limitResult, error) {
	var res limitResult

	gcra, err := ratelimit.NewGCRA(cfg.Rate, cfg.Per, cfg.Burst)
	if err != nil {
		return res, err
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return res, fmt.Errorf("otel prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	l := ratelimit.NewKeyed[string](gcra,
		ratelimit.WithName("zsyncbench"),
		ratelimit.WithLogger(logger),
		ratelimit.WithMeterProvider(mp),
	)
	if err := reg.Register(ops.NewLimiterCollector(l.Name(), l)); err != nil {
		return res, fmt.Errorf("register collector: %w", err)
	}

	checks := []ops.ReadyCheck{ops.LimiterReadyCheck(l.Name(), l)}
	tasks := task.NewManager(task.WithLogger(logger))
	if cfg.PruneEvery > 0 {
		h := tasks.MustAdd(l.PruneTask(cfg.PruneEvery), task.WithName("ratelimit-prune"))
		checks = append(checks, ops.TaskReadyCheck(h))
	}
	if err := tasks.Start(ctx); err != nil {
		return res, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tasks.Shutdown(sctx); err != nil {
			logger.Warn("task shutdown incomplete", "err", err)
		}
	}()

	if cfg.Listen != "" {
		stop, err := serveDiagnostics(cfg.Listen, diagnosticsHandler(reg, l, lv, checks), logger)
		if err != nil {
			return res, err
		}
		defer stop()
	}

	keys := make([]string, cfg.Keys)
	for i := range keys {
		keys[i] = uuid.NewString()
	}

	logger.Info("limit run starting",
		"workers", cfg.Workers, "iterations", cfg.Iterations, "keys", cfg.Keys,
		"rate", cfg.Rate, "per", cfg.Per, "burst", cfg.Burst, "prune_every", cfg.PruneEvery)

	var allowed, denied atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			for i := 0; i < cfg.Iterations; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := l.Check(keys[(w+i)%len(keys)])
				switch {
				case err == nil:
					allowed.Add(1)
				case errors.Is(err, ratelimit.ErrLimited):
					denied.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}
	err = g.Wait()
	res.Elapsed = time.Since(start)
	res.Allowed = allowed.Load()
	res.Denied = denied.Load()
	l.Prune()
	res.Pruned = l.Stats().Pruned
	if err != nil {
		return res, err
	}
	logger.Info("limit run done",
		"allowed", res.Allowed, "denied", res.Denied, "pruned", res.Pruned, "elapsed", res.Elapsed)
	return res, nil
}

// serveDiagnostics serves h on addr until the returned stop function is called.
func serveDiagnostics(addr string, h http.Handler, logger *slog.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("diagnostics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("diagnostics server listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}

// diagnosticsHandler mounts the limiter metrics and snapshot, liveness and
// readiness, and the runtime log level.
func diagnosticsHandler(reg *prometheus.Registry, l *ratelimit.Keyed[string], lv *slog.LevelVar, checks []ops.ReadyCheck) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/limiter", ops.LimiterSnapshotHandler(l))
	mux.Handle("/healthz", ops.HealthzHandler())
	mux.Handle("/readyz", ops.ReadyzHandler(checks))
	mux.Handle("/loglevel", ops.LogLevelHandler(lv))
	return mux
}
