package ratelimit

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/evan-idocoding/zsync/rt/ratelimit"

// Decision results recorded as the "result" attribute.
const (
	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

type metrics struct {
	decisions   metric.Int64Counter
	keysCreated metric.Int64Counter

	allowed metric.MeasurementOption
	denied  metric.MeasurementOption
	failed  metric.MeasurementOption
	limiter metric.MeasurementOption
}

// newMetrics creates the limiter instruments. If the provider refuses an
// instrument, the limiter falls back to no-op instruments; metrics must never
// make a limiter unusable.
func newMetrics(mp metric.MeterProvider, name string) *metrics {
	meter := mp.Meter(instrumentationName)

	decisions, err := meter.Int64Counter(
		"zsync.ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by result"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		decisions = noop.Int64Counter{}
	}
	keysCreated, err := meter.Int64Counter(
		"zsync.ratelimit.keys_created",
		metric.WithDescription("Keys created in keyed limiters"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		keysCreated = noop.Int64Counter{}
	}

	lim := attribute.String("limiter", name)
	return &metrics{
		decisions:   decisions,
		keysCreated: keysCreated,
		allowed:     metric.WithAttributes(lim, attribute.String("result", resultAllowed)),
		denied:      metric.WithAttributes(lim, attribute.String("result", resultDenied)),
		failed:      metric.WithAttributes(lim, attribute.String("result", resultError)),
		limiter:     metric.WithAttributes(lim),
	}
}

func (m *metrics) recordDecision(err error) {
	ctx := context.Background()
	switch {
	case err == nil:
		m.decisions.Add(ctx, 1, m.allowed)
	case errors.Is(err, ErrLimited):
		m.decisions.Add(ctx, 1, m.denied)
	default:
		m.decisions.Add(ctx, 1, m.failed)
	}
}

func (m *metrics) recordKeyCreated() {
	m.keysCreated.Add(context.Background(), 1, m.limiter)
}
