// Package observe provides observability primitives for provider calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Call adapters wrap each provider call in a
// Middleware; the composition root wires key-rotation hooks into Metrics.
package observe
