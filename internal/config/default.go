package config

import (
	"time"

	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
	"github.com/yndnr/datalayer-go/internal/telemetry/logger"
	"github.com/yndnr/datalayer-go/internal/telemetry/tracer"
)

// Default configuration values.
const (
	DefaultTable         = "datalayer"
	DefaultPurgeInterval = 5 * time.Minute
	DefaultMetricsAddr   = "127.0.0.1:9464"
	DefaultMetricsPath   = "/metrics"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultBackupDir     = "data/backups"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: storage.DefaultConfig(),
		Tables: TablesSection{
			Default: DefaultTable,
		},
		Purge: PurgeSection{
			Enabled:   true,
			OnStartup: true,
			Interval:  DefaultPurgeInterval,
		},
		Log: logger.Config{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
			Path: DefaultMetricsPath,
		},
		Tracing: tracer.DefaultConfig(),
		Backup: BackupSection{
			Dir:            DefaultBackupDir,
			RetentionCount: snapshot.DefaultRetentionCount,
			RetentionDays:  snapshot.DefaultRetentionDays,
		},
	}
}
