package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
	"github.com/yndnr/datalayer-go/internal/storage/sqlite"
)

// Verify validates the configuration and creates the data directory of
// file-backed drivers. All problems are reported together.
func Verify(cfg *Config) error {
	errs := []error{
		verifyStorage(&cfg.Storage),
		verifyTables(&cfg.Tables),
		verifyPurge(&cfg.Purge),
		verifyLog(cfg),
		verifyMetrics(&cfg.Metrics),
		verifyBackup(&cfg.Backup),
	}
	if cfg.Session.Interval < 0 {
		errs = append(errs, invalid("session.interval must not be negative"))
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, invalid("tracing.endpoint is required when tracing is enabled"))
	}
	return errors.Join(errs...)
}

func invalid(msg string) error {
	return domain.ErrInvalidArgument.WithDetails(msg)
}

func verifyStorage(cfg *storage.Config) error {
	if cfg.QueueSize < 0 {
		return invalid("storage.queue_size must not be negative")
	}

	switch cfg.Driver {
	case storage.DriverSQLite, "":
		if cfg.SQLite.Path == "" {
			return invalid("storage.sqlite.path is required")
		}
		if cfg.SQLite.Path == sqlite.MemoryPath {
			return nil
		}
		return ensureDir(filepath.Dir(cfg.SQLite.Path))
	case storage.DriverBadger:
		if _, err := time.ParseDuration(cfg.Badger.GCInterval); cfg.Badger.GCInterval != "" && err != nil {
			return invalid("storage.badger.gc_interval: " + err.Error())
		}
		if cfg.Badger.GCThreshold < 0 || cfg.Badger.GCThreshold > 1 {
			return invalid("storage.badger.gc_threshold must be within [0, 1]")
		}
		if cfg.Badger.InMemory {
			return nil
		}
		if cfg.Badger.Dir == "" {
			return invalid("storage.badger.dir is required")
		}
		return ensureDir(cfg.Badger.Dir)
	case storage.DriverRedis:
		if cfg.Redis.Addr == "" {
			return invalid("storage.redis.addr is required")
		}
		if cfg.Redis.TLS.Enabled && (cfg.Redis.TLS.CertFile == "") != (cfg.Redis.TLS.KeyFile == "") {
			return invalid("storage.redis.tls.cert_file and key_file must be set together")
		}
		return nil
	case storage.DriverMemory:
		return nil
	default:
		return invalid(fmt.Sprintf("storage.driver %q is not one of sqlite, badger, redis, memory", cfg.Driver))
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.ErrStorageUnavailable.WithDetails("create data directory " + dir).WithCause(err)
	}
	return nil
}

func verifyTables(cfg *TablesSection) error {
	if err := medium.ValidateTableName(cfg.Default); err != nil {
		return fmt.Errorf("tables.default: %w", err)
	}
	return nil
}

func verifyPurge(cfg *PurgeSection) error {
	if cfg.Enabled && cfg.Interval <= 0 {
		return invalid("purge.interval must be positive when purge is enabled")
	}
	return nil
}

func verifyLog(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
		return nil
	default:
		return invalid(fmt.Sprintf("log.format %q is not one of json, text", cfg.Log.Format))
	}
}

func verifyMetrics(cfg *MetricsSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return invalid("metrics.path must start with /")
	}
	return nil
}

func verifyBackup(cfg *BackupSection) error {
	if cfg.Interval < 0 {
		return invalid("backup.interval must not be negative")
	}
	if cfg.Interval > 0 && cfg.Dir == "" {
		return invalid("backup.dir is required when backup.interval is set")
	}
	if cfg.RetentionCount < 0 || cfg.RetentionDays < 0 {
		return invalid("backup retention must not be negative")
	}
	if err := cfg.Encryption().Validate(); err != nil {
		return invalid("backup: " + err.Error())
	}
	return nil
}
