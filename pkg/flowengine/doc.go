// Package flowengine is the public facade over the engine internals.
// A Runtime wires the builder registry, cache, recorder, and flow
// repository together; Start launches a flow run and hands back a Run
// handle for subscribing to events, cancelling, and waiting for the
// summary. The zero-configuration NewRuntime() is suitable for local
// usage and tests.
package flowengine
