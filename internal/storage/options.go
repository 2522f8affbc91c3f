package storage

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultQueueSize is the per-table executor backlog before submitters block.
const DefaultQueueSize = 256

// Observer receives storage instrumentation. *metric.Registry implements it.
type Observer interface {
	ObserveOperation(table, op string, err error, elapsed time.Duration)
	AddRemoved(table, reason string, n int)
	NotifierPanic(table string)
	SetQueueDepth(table string, depth int)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, error, time.Duration) {}
func (nopObserver) AddRemoved(string, string, int)                        {}
func (nopObserver) NotifierPanic(string)                                  {}
func (nopObserver) SetQueueDepth(string, int)                             {}

type options struct {
	clock      func() time.Time
	logger     *slog.Logger
	observer   Observer
	registerer prometheus.Registerer
	queueSize  int
}

func defaultOptions() options {
	return options{
		clock:     time.Now,
		logger:    slog.Default(),
		observer:  nopObserver{},
		queueSize: DefaultQueueSize,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures tables and engines.
type Option func(*options)

// WithClock sets the time source used for expiry decisions and
// LastUpdated stamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the instrumentation sink.
func WithMetrics(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRegisterer registers medium-level collectors (Badger sizes) on reg
// when an Engine opens its medium.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithQueueSize sets the per-table executor backlog.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}
