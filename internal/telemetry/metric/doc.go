// Package metric provides Prometheus metrics for the data layer.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry of storage metrics and its HTTP handler
//   - collector.go: Collector exporting live row counts per table
//
// Metrics include:
//
//   - Operation counters and latency histograms per table
//   - Removed record counters by reason
//   - Change hook panic counters
//   - Executor queue depth and row count gauges
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
