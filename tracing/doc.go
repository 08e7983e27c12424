// Package tracing installs a span-tracing pipeline scoped to a single test.
//
// Init builds an OpenTelemetry tracer provider whose output lands in the
// calling test's captured log, swaps it in as the global provider, and
// guarantees the previous provider is back in place once the test ends,
// including when the body panics or calls Fatal. Two tests never share an
// installation: each gets its own provider, exporter, and writer.
//
// Finished spans are exported through the stdouttrace exporter. The
// TESTLOG_SPAN_EVENTS environment variable can additionally request span
// lifecycle markers, a comma-separated subset of
// new, enter, exit, close, active, full; tokens that parse to nothing are
// ignored. TESTLOG verbosity directives gate markers per instrumentation
// scope.
package tracing
