package metric

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RowCounter reports the number of visible rows per table.
type RowCounter interface {
	RowCounts(ctx context.Context) (map[string]int, error)
}

// Collector exports live row counts at scrape time.
type Collector struct {
	source  RowCounter
	timeout time.Duration
	logger  *slog.Logger

	rows *prometheus.Desc
	up   *prometheus.Desc
}

// NewCollector creates a collector reading from source. Each scrape is
// bounded by timeout.
func NewCollector(source RowCounter, timeout time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Collector{
		source:  source,
		timeout: timeout,
		logger:  logger,
		rows: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "table", "rows"),
			"Rows visible through the table.",
			[]string{"table"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "storage", "up"),
			"Whether the last row count scrape succeeded.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.source.RowCounts(ctx)
	if err != nil {
		c.logger.Warn("row count scrape failed", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for table, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(n), table)
	}
}
