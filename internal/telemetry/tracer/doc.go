// Package tracer provides OpenTelemetry tracing for the data layer.
//
// Tracing is opt-in. Setup installs a global tracer provider exporting
// over OTLP/HTTP when enabled; otherwise spans go to the no-op provider
// and StartSpan costs almost nothing.
package tracer
