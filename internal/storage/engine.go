package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/infra/tlsroots"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
	"github.com/yndnr/datalayer-go/internal/storage/memory"
	redismedium "github.com/yndnr/datalayer-go/internal/storage/redis"
	"github.com/yndnr/datalayer-go/internal/storage/sqlite"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Default configuration values.
const (
	DefaultDriver     = DriverSQLite
	DefaultSQLitePath = "data/datalayer.db"
	DefaultBadgerDir  = "data/badger"
	DefaultRedisAddr  = "127.0.0.1:6379"
)

// SQLiteConfig configures the sqlite driver.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path string `koanf:"path"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`

	TLS tlsroots.Config `koanf:"tls"`
}

// Config configures the medium an Engine opens.
type Config struct {
	// Driver selects the medium: sqlite, badger, redis or memory.
	Driver string `koanf:"driver"`

	// QueueSize is the per-table executor backlog.
	QueueSize int `koanf:"queue_size"`

	SQLite SQLiteConfig `koanf:"sqlite"`
	Badger BadgerConfig `koanf:"badger"`
	Redis  RedisConfig  `koanf:"redis"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Driver:    DefaultDriver,
		QueueSize: DefaultQueueSize,
		SQLite:    SQLiteConfig{Path: DefaultSQLitePath},
		Badger:    DefaultBadgerConfig(DefaultBadgerDir),
		Redis:     RedisConfig{Addr: DefaultRedisAddr, Prefix: redismedium.DefaultPrefix},
	}
}

// Engine owns a medium and the tables opened on it.
type Engine struct {
	medium medium.Medium
	opts   options
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]*Table
	closed bool
}

// Open opens the medium selected by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	o := buildOptions(opts)
	if cfg.QueueSize > 0 {
		o.queueSize = cfg.QueueSize
	}

	m, err := openMedium(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	o.logger.Info("storage engine opened", "driver", cfg.Driver)
	return newEngine(m, o), nil
}

func openMedium(ctx context.Context, cfg Config, o options) (medium.Medium, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.Open(cfg.SQLite.Path)
	case DriverBadger:
		bm, err := OpenBadger(cfg.Badger, o.logger.With("component", "badger"))
		if err != nil {
			return nil, err
		}
		if o.registerer != nil {
			bm.RegisterMetrics(o.registerer)
		}
		return bm, nil
	case DriverRedis:
		logger := o.logger.With("component", "redis")
		tc, stop, err := tlsroots.ClientConfig(cfg.Redis.TLS, logger)
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails("redis tls").WithCause(err)
		}
		return redismedium.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redismedium.WithPrefix(cfg.Redis.Prefix),
			redismedium.WithLogger(logger),
			redismedium.WithTLS(tc),
			redismedium.WithCloseHook(stop))
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}

// NewEngine wraps an already opened medium. Close closes it.
func NewEngine(m medium.Medium, opts ...Option) *Engine {
	return newEngine(m, buildOptions(opts))
}

func newEngine(m medium.Medium, o options) *Engine {
	return &Engine{
		medium: m,
		opts:   o,
		logger: o.logger,
		tables: make(map[string]*Table),
	}
}

// Table returns the table named cfg.Name, creating it on first use. A
// later call for the same name returns the same Table; its hooks are
// subscribed to it. A name equal to an open table's name up to case is
// rejected with ErrInvalidTableName.
func (e *Engine) Table(ctx context.Context, cfg TableConfig) (*Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, domain.ErrStorageUnavailable.WithDetails("engine closed")
	}
	// SQLite identifiers ignore case, so names are unique case-insensitively.
	id := strings.ToLower(cfg.Name)
	if t, ok := e.tables[id]; ok {
		if t.Name() != cfg.Name {
			return nil, domain.ErrInvalidTableName.WithDetails(
				fmt.Sprintf("%q conflicts with open table %q", cfg.Name, t.Name()))
		}
		if t.IncludesExpired() != cfg.IncludeExpired {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("table %q already open with include_expired=%t", cfg.Name, t.IncludesExpired()))
		}
		if cfg.OnUpdate != nil || cfg.OnRemove != nil {
			t.Subscribe(ListenerFuncs{Update: cfg.OnUpdate, Remove: cfg.OnRemove})
		}
		return t, nil
	}

	t, err := newTable(ctx, e.medium, cfg, e.opts)
	if err != nil {
		return nil, err
	}
	e.tables[id] = t
	e.logger.Debug("table opened", "table", cfg.Name, "include_expired", cfg.IncludeExpired)
	return t, nil
}

// Tables returns the open tables ordered by name.
func (e *Engine) Tables() []*Table {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Table, 0, len(e.tables))
	for _, t := range e.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Medium returns the underlying medium.
func (e *Engine) Medium() medium.Medium { return e.medium }

// RowCounts returns the visible row count of every open table.
func (e *Engine) RowCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	var errs []error
	for _, t := range e.Tables() {
		n, err := t.Count(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("count %s: %w", t.Name(), err))
			continue
		}
		counts[t.Name()] = n
	}
	return counts, errors.Join(errs...)
}

// Close drains and closes every table, then closes the medium.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	tables := make([]*Table, 0, len(e.tables))
	for _, t := range e.tables {
		tables = append(tables, t)
	}
	e.mu.Unlock()

	e.logger.Info("shutting down storage engine", "tables", len(tables))
	for _, t := range tables {
		t.Close()
	}
	if err := e.medium.Close(); err != nil {
		e.logger.Error("close medium failed", "error", err)
		return fmt.Errorf("close medium: %w", err)
	}
	e.logger.Info("storage engine shutdown complete")
	return nil
}
