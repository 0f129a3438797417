package metrics

import (
	"expvar"
)

// Run / vertex metrics.
var (
	runsStarted     = new(expvar.Int)
	runsFinished    = expvar.NewMap("flowengine_runs_finished_total") // keyed by final status
	verticesBuilt   = new(expvar.Int)
	verticesErrored = new(expvar.Int)
	verticesSkipped = new(expvar.Int)
)

// Cache metrics.
var (
	cacheHits        = new(expvar.Int)
	cacheMisses      = new(expvar.Int)
	cacheEvictions   = new(expvar.Int)
	cacheBackendErrs = new(expvar.Int)
)

// Event / recorder metrics.
var (
	eventsEmitted      = new(expvar.Int)
	eventsDropped      = new(expvar.Int)
	subscribersDropped = new(expvar.Int)
	recordsPersisted   = new(expvar.Int)
	recordsDropped     = new(expvar.Int)
)

func init() {
	expvar.Publish("flowengine_runs_started_total", runsStarted)
	expvar.Publish("flowengine_vertices_built_total", verticesBuilt)
	expvar.Publish("flowengine_vertices_errored_total", verticesErrored)
	expvar.Publish("flowengine_vertices_skipped_total", verticesSkipped)
	expvar.Publish("flowengine_cache_hits_total", cacheHits)
	expvar.Publish("flowengine_cache_misses_total", cacheMisses)
	expvar.Publish("flowengine_cache_evictions_total", cacheEvictions)
	expvar.Publish("flowengine_cache_backend_errors_total", cacheBackendErrs)
	expvar.Publish("flowengine_events_emitted_total", eventsEmitted)
	expvar.Publish("flowengine_events_dropped_total", eventsDropped)
	expvar.Publish("flowengine_subscribers_dropped_total", subscribersDropped)
	expvar.Publish("flowengine_records_persisted_total", recordsPersisted)
	expvar.Publish("flowengine_records_dropped_total", recordsDropped)
}

// Run helpers
func IncRunsStarted()               { runsStarted.Add(1) }
func IncRunsFinished(status string) { runsFinished.Add(status, 1) }
func IncVerticesBuilt()             { verticesBuilt.Add(1) }
func IncVerticesErrored()           { verticesErrored.Add(1) }
func IncVerticesSkipped(n int64)    { verticesSkipped.Add(n) }

// Cache helpers
func IncCacheHits()        { cacheHits.Add(1) }
func IncCacheMisses()      { cacheMisses.Add(1) }
func IncCacheEvictions()   { cacheEvictions.Add(1) }
func IncCacheBackendErrs() { cacheBackendErrs.Add(1) }

// Event / recorder helpers
func IncEventsEmitted()      { eventsEmitted.Add(1) }
func IncEventsDropped()      { eventsDropped.Add(1) }
func IncSubscribersDropped() { subscribersDropped.Add(1) }
func IncRecordsPersisted()   { recordsPersisted.Add(1) }
func IncRecordsDropped()     { recordsDropped.Add(1) }
