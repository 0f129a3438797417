// Package metrics exposes expvar-published counters and gauges used by the
// engine (runs, vertex builds, cache, events, and the build recorder). It
// intentionally avoids external dependencies and is consumed by the optional
// server binary for /debug/vars and /metrics endpoints.
package metrics
