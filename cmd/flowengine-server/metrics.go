package main

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// promMetricsHandler renders expvar-published metrics in Prometheus text
// exposition format. Known engine metrics get HELP/TYPE metadata; other
// numeric expvars fall back to untyped gauges.
func promMetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	type meta struct {
		typ, help string
		isMap     bool
		label     string
	}
	metas := map[string]meta{
		"flowengine_runs_started_total":         {typ: "counter", help: "Flow runs started"},
		"flowengine_runs_finished_total":        {typ: "counter", help: "Flow runs finished", isMap: true, label: "status"},
		"flowengine_vertices_built_total":       {typ: "counter", help: "Vertices built successfully"},
		"flowengine_vertices_errored_total":     {typ: "counter", help: "Vertices that failed to build"},
		"flowengine_vertices_skipped_total":     {typ: "counter", help: "Vertices skipped due to failed predecessors"},
		"flowengine_cache_hits_total":           {typ: "counter", help: "Build cache hits"},
		"flowengine_cache_misses_total":         {typ: "counter", help: "Build cache misses"},
		"flowengine_cache_evictions_total":      {typ: "counter", help: "Build cache evictions"},
		"flowengine_cache_backend_errors_total": {typ: "counter", help: "Cold cache backend errors"},
		"flowengine_events_emitted_total":       {typ: "counter", help: "Run events emitted"},
		"flowengine_events_dropped_total":       {typ: "counter", help: "Run events dropped on slow subscribers"},
		"flowengine_subscribers_dropped_total":  {typ: "counter", help: "Event subscribers disconnected for falling behind"},
		"flowengine_records_persisted_total":    {typ: "counter", help: "Run and vertex records persisted"},
		"flowengine_records_dropped_total":      {typ: "counter", help: "Records dropped on queue overflow or validation"},
	}

	varNames := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		varNames = append(varNames, kv.Key)
	})
	sort.Strings(varNames)

	for _, name := range varNames {
		v := expvar.Get(name)
		m, known := metas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok && strings.HasPrefix(name, "flowengine_") {
				fmt.Fprintf(w, "# TYPE %s gauge\n%s %s\n", name, name, iv.String())
			}
			continue
		}
		fmt.Fprintf(w, "# HELP %s %s\n", name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)
		if m.isMap {
			mp, ok := v.(*expvar.Map)
			if !ok {
				continue
			}
			sub := make([]expvar.KeyValue, 0, 8)
			mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
			sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
			for _, kv := range sub {
				fmt.Fprintf(w, "%s{%s=%q} %s\n", name, m.label, kv.Key, kv.Value.String())
			}
			continue
		}
		fmt.Fprintf(w, "%s %s\n", name, v.String())
	}
}
