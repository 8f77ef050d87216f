// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. The cache package wires a Middleware around every
// backend call so that absorbed failures stay visible in traces, metrics
// and logs even though they never reach the caller.
package observe
