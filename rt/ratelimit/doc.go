// Package ratelimit implements GCRA (Generic Cell Rate Algorithm) rate limiting
// on top of rt/cell.
//
// GCRA keeps a single timestamp per limiter, the theoretical arrival time (TAT).
// A request for n units is allowed when
//
//	now >= max(TAT, now) + n*interval - burst*interval
//
// and, if allowed, advances TAT to max(TAT, now) + n*interval. A fresh limiter
// therefore admits a burst of `burst` units at once and then one unit every
// interval.
//
// The algorithm itself is a pure decision function (GCRA.Decide). Limiter and
// Keyed apply it through cell.Cell.MeasureAndReplace, so each decision is made
// and committed atomically per key, and Keyed stores its cells in a
// copy-on-write map (rt/cowmap) so that checks on existing keys never take a
// map-wide lock.
//
// # Errors
//
// A denied request returns a *NotUntilError (errors.Is(err, ErrLimited)) with the
// earliest time the same request could succeed. Requests larger than the burst
// can never succeed and return ErrInsufficientCapacity.
//
// # Observability
//
// Limiters record OpenTelemetry counters (decisions by result, keys created)
// through the global MeterProvider unless WithMeterProvider is given. They log
// at Debug level through WithLogger; the default logger discards everything.
package ratelimit
