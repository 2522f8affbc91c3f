package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "datalayer"

// Operation results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds the data layer metrics on a private Prometheus registry.
//
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	// Storage metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RecordsRemoved    *prometheus.CounterVec
	NotifierPanics    *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
}

// NewRegistry creates a registry with the storage metrics and the Go
// runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Table operations executed, by result.",
		}, []string{"table", "op", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Time spent executing a table operation, hooks included.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"table", "op"}),
		RecordsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "records_removed_total",
			Help:      "Records removed, by reason.",
		}, []string{"table", "reason"}),
		NotifierPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "notifier_panics_total",
			Help:      "Change hooks that panicked.",
		}, []string{"table"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "queue_depth",
			Help:      "Units queued or running on a table executor.",
		}, []string{"table"}),
	}

	r.reg.MustRegister(
		r.OperationsTotal,
		r.OperationDuration,
		r.RecordsRemoved,
		r.NotifierPanics,
		r.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registerer exposes the underlying registry for components that register
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.reg
}

// Gatherer exposes the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObserveOperation records one finished table operation.
func (r *Registry) ObserveOperation(table, op string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.OperationsTotal.WithLabelValues(table, op, result).Inc()
	r.OperationDuration.WithLabelValues(table, op).Observe(elapsed.Seconds())
}

// AddRemoved counts n records removed from table for reason.
func (r *Registry) AddRemoved(table, reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.RecordsRemoved.WithLabelValues(table, reason).Add(float64(n))
}

// NotifierPanic counts a recovered change hook panic.
func (r *Registry) NotifierPanic(table string) {
	if r == nil {
		return
	}
	r.NotifierPanics.WithLabelValues(table).Inc()
}

// SetQueueDepth publishes the executor backlog of table.
func (r *Registry) SetQueueDepth(table string, depth int) {
	if r == nil {
		return
	}
	r.QueueDepth.WithLabelValues(table).Set(float64(depth))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
