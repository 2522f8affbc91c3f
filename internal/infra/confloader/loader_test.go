package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Storage struct {
		Driver    string `koanf:"driver"`
		QueueSize int    `koanf:"queue_size"`
	} `koanf:"storage"`
	Purge struct {
		Interval string `koanf:"interval"`
		Enabled  bool   `koanf:"enabled"`
	} `koanf:"purge"`
}

func defaults() testConfig {
	var c testConfig
	c.Storage.Driver = "sqlite"
	c.Storage.QueueSize = 256
	c.Purge.Interval = "5m"
	c.Purge.Enabled = true
	return c
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datalayer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
	if NewLoader().envPrefix != DefaultEnvPrefix {
		t.Error("default env prefix not applied")
	}
}

func TestLoader_DefaultsSurvive(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: badger\n")

	cfg := defaults()
	if err := NewLoader(WithConfigFile(path), WithEnvPrefix("DLTEST_NONE_")).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "badger" {
		t.Errorf("driver = %q, want badger", cfg.Storage.Driver)
	}
	if cfg.Storage.QueueSize != 256 || cfg.Purge.Interval != "5m" || !cfg.Purge.Enabled {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoader_Precedence(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: badger\n  queue_size: 64\npurge:\n  interval: 1m\n")
	t.Setenv("DLTEST_STORAGE__QUEUE_SIZE", "512")
	t.Setenv("DLTEST_PURGE__INTERVAL", "30s")

	cfg := defaults()
	l := NewLoader(
		WithConfigFile(path),
		WithEnvPrefix("DLTEST_"),
		WithOverrides(map[string]any{"purge.interval": "10s"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Driver != "badger" {
		t.Errorf("file value lost: driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.QueueSize != 512 {
		t.Errorf("env should override file: queue_size = %d", cfg.Storage.QueueSize)
	}
	if cfg.Purge.Interval != "10s" {
		t.Errorf("overrides should win: interval = %q", cfg.Purge.Interval)
	}
	if l.String("storage.driver") != "badger" || l.Int("storage.queue_size") != 512 {
		t.Error("getters disagree with unmarshaled config")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	if err := NewLoader().LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
	if err := NewLoader().LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") = %v, want nil", err)
	}
}

func TestLoader_LoadFile_Invalid(t *testing.T) {
	path := writeConfig(t, "storage: [unterminated\n")
	cfg := defaults()
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"DATALAYER_STORAGE__DRIVER":            "storage.driver",
		"DATALAYER_STORAGE__REDIS__ADDR":       "storage.redis.addr",
		"DATALAYER_STORAGE__QUEUE_SIZE":        "storage.queue_size",
		"DATALAYER_LOG__LEVEL":                 "log.level",
		"DATALAYER_METRICS__LISTEN_ADDR":       "metrics.listen_addr",
		"DATALAYER_TABLES__INCLUDE_EXPIRED":    "tables.include_expired",
		"DATALAYER_STORAGE__BADGER__IN_MEMORY": "storage.badger.in_memory",
	}
	for in, want := range tests {
		if got := EnvKey(DefaultEnvPrefix, in); got != want {
			t.Errorf("EnvKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapProvider(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"storage.driver": "redis", "log": map[string]any{"level": "debug"}}); err != nil {
		t.Fatal(err)
	}
	if l.String("storage.driver") != "redis" || l.String("log.level") != "debug" {
		t.Errorf("storage.driver = %q, log.level = %q", l.String("storage.driver"), l.String("log.level"))
	}
	if err := l.LoadMap(nil); err != nil {
		t.Errorf("LoadMap(nil) = %v", err)
	}
	if _, err := mapProvider(nil).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() = %v", err)
	}
}
