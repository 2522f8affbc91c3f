package config

import (
	"time"

	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
	"github.com/yndnr/datalayer-go/internal/telemetry/logger"
	"github.com/yndnr/datalayer-go/internal/telemetry/tracer"
)

// Config is the root configuration.
type Config struct {
	Storage storage.Config `koanf:"storage"`
	Tables  TablesSection  `koanf:"tables"`
	Purge   PurgeSection   `koanf:"purge"`
	Session SessionSection `koanf:"session"`
	Log     logger.Config  `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
	Tracing tracer.Config  `koanf:"tracing"`
	Backup  BackupSection  `koanf:"backup"`
}

// TablesSection configures how tables are opened.
type TablesSection struct {
	// Default is the table used when a command names none.
	Default string `koanf:"default"`

	// IncludeExpired opens tables in raw mode: reads ignore expiry.
	IncludeExpired bool `koanf:"include_expired"`
}

// PurgeSection configures removal of expired records.
type PurgeSection struct {
	Enabled   bool          `koanf:"enabled"`
	OnStartup bool          `koanf:"on_startup"`
	Interval  time.Duration `koanf:"interval"`
}

// SessionSection configures the session boundary source of the run
// command.
type SessionSection struct {
	// Interval starts a new session periodically. Zero leaves sessions to
	// external events.
	Interval time.Duration `koanf:"interval"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Path    string `koanf:"path"`
}

// BackupSection configures table snapshots.
type BackupSection struct {
	Dir            string `koanf:"dir"`
	RetentionCount int    `koanf:"retention_count"`
	RetentionDays  int    `koanf:"retention_days"`

	// Passphrase enables encryption. Prefer DATALAYER_BACKUP__PASSPHRASE
	// over the config file.
	Passphrase string `koanf:"passphrase"`
	Algorithm  string `koanf:"algorithm"`

	// Interval takes backups from the run command. Zero disables them.
	Interval time.Duration `koanf:"interval"`
}

// Snapshot returns the snapshot manager configuration.
func (b BackupSection) Snapshot() snapshot.Config {
	return snapshot.Config{
		Dir:            b.Dir,
		RetentionCount: b.RetentionCount,
		RetentionDays:  b.RetentionDays,
		Encryption:     b.Encryption(),
	}
}

// Encryption returns the snapshot encryption settings.
func (b BackupSection) Encryption() snapshot.EncryptionConfig {
	enc := snapshot.EncryptionConfig{Algorithm: b.Algorithm}
	if b.Passphrase != "" {
		enc.Passphrase = []byte(b.Passphrase)
	}
	return enc
}
