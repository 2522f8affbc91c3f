package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  func() Config
	}{
		{"sqlite", func() Config {
			c := DefaultConfig()
			c.SQLite.Path = filepath.Join(dir, "dl.db")
			return c
		}},
		{"badger", func() Config {
			c := DefaultConfig()
			c.Driver = DriverBadger
			c.Badger = DefaultBadgerConfig(filepath.Join(dir, "badger"))
			c.Badger.GCInterval = "1h"
			return c
		}},
		{"memory", func() Config {
			c := DefaultConfig()
			c.Driver = DriverMemory
			return c
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			eng, err := Open(ctx, tt.cfg(), WithRegisterer(prometheus.NewRegistry()))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			tbl, err := eng.Table(ctx, TableConfig{Name: "datalayer"})
			if err != nil {
				t.Fatalf("Table: %v", err)
			}
			if err := tbl.Upsert(ctx, mustRecord(t, "k", "v", domain.Forever())); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
			counts, err := eng.RowCounts(ctx)
			if err != nil || counts["datalayer"] != 1 {
				t.Errorf("RowCounts = %v, %v", counts, err)
			}
			if err := eng.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := eng.Close(); err != nil {
				t.Errorf("second Close: %v", err)
			}
			if _, err := tbl.Count(ctx); !errors.Is(err, domain.ErrTableClosed) {
				t.Errorf("table after engine Close = %v, want ErrTableClosed", err)
			}
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "floppy"
	if _, err := Open(context.Background(), cfg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Open = %v, want ErrInvalidArgument", err)
	}
}

func TestEngine_SameNameSameTable(t *testing.T) {
	eng := NewEngine(memoryMedium())
	defer eng.Close()
	ctx := context.Background()

	first, err := eng.Table(ctx, TableConfig{Name: "datalayer"})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	second, err := eng.Table(ctx, TableConfig{Name: "datalayer", OnUpdate: rec.OnUpdate})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("same name returned different tables")
	}

	_ = first.Upsert(ctx, mustRecord(t, "k", "v", domain.Forever()))
	if u := rec.Updates(); !equalStrings(u, []string{"k"}) {
		t.Errorf("hooks of second open not subscribed: %v", u)
	}

	if _, err := eng.Table(ctx, TableConfig{Name: "datalayer", IncludeExpired: true}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("mode mismatch = %v, want ErrInvalidArgument", err)
	}

	other, _ := eng.Table(ctx, TableConfig{Name: "another"})
	tables := eng.Tables()
	if len(tables) != 2 || tables[0] != other || tables[1] != first {
		t.Errorf("Tables() not sorted by name")
	}
}

func TestEngine_NamesDifferingOnlyInCase(t *testing.T) {
	eng := NewEngine(memoryMedium())
	defer eng.Close()
	ctx := context.Background()

	if _, err := eng.Table(ctx, TableConfig{Name: "profile"}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Table(ctx, TableConfig{Name: "Profile"}); !errors.Is(err, domain.ErrInvalidTableName) {
		t.Errorf("Table(Profile) = %v, want ErrInvalidTableName", err)
	}
	if n := len(eng.Tables()); n != 1 {
		t.Errorf("Tables() has %d entries, want 1", n)
	}
}

func TestEngine_TableAfterClose(t *testing.T) {
	eng := NewEngine(memoryMedium())
	_ = eng.Close()
	if _, err := eng.Table(context.Background(), TableConfig{Name: "datalayer"}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Table after Close = %v, want ErrStorageUnavailable", err)
	}
}

func TestOpen_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.Driver = DriverRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Prefix = "dltest"

	ctx := context.Background()
	eng, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()

	tbl, err := eng.Table(ctx, TableConfig{Name: "google_adid"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Upsert(ctx, mustRecord(t, "adid", "38400000-8cf0-11bd-b23e-10b96e40000d", domain.Forever())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !mr.Exists("dltest:google_adid") {
		t.Errorf("hash dltest:google_adid missing, keys = %v", mr.Keys())
	}
}

func TestOpen_RedisErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = DriverRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	if _, err := Open(context.Background(), cfg); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("unreachable = %v, want ErrStorageUnavailable", err)
	}

	cfg.Redis.TLS.Enabled = true
	cfg.Redis.TLS.CAFile = filepath.Join(t.TempDir(), "missing.crt")
	if _, err := Open(context.Background(), cfg); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("bad tls = %v, want ErrInvalidArgument", err)
	}
}
