// Package tracing records one span per invocation and can hand back the
// materialized trace of a request.
//
// The dispatcher depends only on the [Tracer], [Span], and [TraceSource]
// interfaces. [Provider] implements them on the OpenTelemetry SDK: spans are
// kept in an in-memory [Store] so a trace can be returned to the caller, and
// are optionally exported over OTLP/HTTP. [Nop] disables tracing.
//
// Tracing is best-effort. Export failures are logged and never reach the
// request path.
package tracing
