package ratelimit

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type config struct {
	name   string
	now    func() time.Time
	logger *slog.Logger
	mp     metric.MeterProvider
}

// Option configures a Limiter or Keyed limiter.
type Option func(*config)

// WithName sets the limiter name used in logs and as the "limiter" metric attribute.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithClock replaces time.Now. It is mainly useful in tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// The default is the global provider (otel.GetMeterProvider).
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.mp = mp
		}
	}
}

func applyOptions(opts []Option) config {
	cfg := config{
		name:   "default",
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.mp == nil {
		cfg.mp = otel.GetMeterProvider()
	}
	return cfg
}
