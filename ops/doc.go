// Package ops provides operational surfaces for zsync: a net/http limiter
// snapshot handler, a Prometheus collector, liveness and readiness handlers
// with checks for limiters and background tasks, and a runtime log-level
// handler.
//
// ops is designed to be mounted into your own routing tree and registry. It
// intentionally:
//   - does not choose routing paths (mount it anywhere),
//   - does not do authn/authz decisions (protect it with your own middleware),
//   - does not start servers or manage process lifecycle.
//
// # Formats
//
// Every handler renders text by default. The default can be configured
// by options, and can be overridden per request by URL query:
//   - ?format=text
//   - ?format=json
//
// Text output is line-based and stable/greppable. JSON output is structured and
// suitable for tooling. When the source reports stats, the limiter snapshot also
// carries the map generation in the X-Zsync-Limiter-Generation header.
//
// # Advisory data
//
// Everything ops renders is built from cell snapshots: each key is read under its
// own lock, one key after the other. Use it to look at a running system, not to
// make decisions.
package ops
