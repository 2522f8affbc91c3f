package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// keySep separates the table name from the record key. Table names are
// identifiers so they never contain it.
const keySep = 0x00

// BadgerMedium implements medium.Medium on an embedded Badger v3 store.
//
// Rows are stored as JSON values under "<table>\x00<key>".
type BadgerMedium struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime atomic.Int64  // Unix milliseconds
	gcRuns     atomic.Uint64 // value log files rewritten

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ medium.Medium = (*BadgerMedium)(nil)

// OpenBadger opens a Badger-backed medium.
func OpenBadger(cfg BadgerConfig, logger *slog.Logger) (*BadgerMedium, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory

	db, err := badger.Open(opts)
	if err != nil {
		return nil, medium.Unavailable("badger open", err)
	}

	m := &BadgerMedium{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if !cfg.InMemory {
		m.wg.Add(1)
		go m.gcLoop()
	}

	logger.Info("badger medium started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return m, nil
}

func rowKey(table, key string) []byte {
	b := make([]byte, 0, len(table)+1+len(key))
	b = append(b, table...)
	b = append(b, keySep)
	return append(b, key...)
}

func tablePrefix(table string) []byte {
	return append([]byte(table), keySep)
}

// EnsureTable validates the name. Badger has no schema.
func (m *BadgerMedium) EnsureTable(_ context.Context, table string) error {
	return medium.ValidateTableName(table)
}

// Replace inserts row, replacing any row with the same key.
func (m *BadgerMedium) Replace(_ context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	value, err := json.Marshal(row)
	if err != nil {
		return 0, medium.Unavailable("encode row", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(table, row.Key), value)
	})
	if err != nil {
		return 0, medium.Unavailable("badger set", err)
	}
	return 1, nil
}

// Update rewrites the row matching row.Key.
func (m *BadgerMedium) Update(_ context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	value, err := json.Marshal(row)
	if err != nil {
		return 0, medium.Unavailable("encode row", err)
	}

	var n int64
	err = m.db.Update(func(txn *badger.Txn) error {
		key := rowKey(table, row.Key)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		n = 1
		return txn.Set(key, value)
	})
	if err != nil {
		return 0, medium.Unavailable("badger update", err)
	}
	return n, nil
}

// Delete removes the rows matching f in one transaction.
func (m *BadgerMedium) Delete(ctx context.Context, table string, f medium.Filter) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	if f.MatchesNothing() {
		return 0, nil
	}

	if f.Keys == nil && f.Scope == medium.AnyExpiry {
		return m.deletePrefix(table)
	}

	var n int64
	err := m.db.Update(func(txn *badger.Txn) error {
		rows, err := m.scan(txn, table, f)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := txn.Delete(rowKey(table, r.Key)); err != nil {
				return err
			}
		}
		n = int64(len(rows))
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return m.deleteInBatches(ctx, table, f)
	}
	if err != nil {
		return 0, medium.Unavailable("badger delete", err)
	}
	return n, nil
}

// deletePrefix removes every key of the table without decoding values,
// so undecodable rows go too.
func (m *BadgerMedium) deletePrefix(table string) (int64, error) {
	prefix := tablePrefix(table)
	var keys [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, medium.Unavailable("badger scan keys", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, medium.Unavailable("badger batch delete", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, medium.Unavailable("badger batch flush", err)
	}
	return int64(len(keys)), nil
}

// deleteInBatches handles deletes too large for one transaction.
func (m *BadgerMedium) deleteInBatches(ctx context.Context, table string, f medium.Filter) (int64, error) {
	rows, err := m.Select(ctx, table, f)
	if err != nil {
		return 0, err
	}
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range rows {
		if err := wb.Delete(rowKey(table, r.Key)); err != nil {
			return 0, medium.Unavailable("badger batch delete", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, medium.Unavailable("badger batch flush", err)
	}
	return int64(len(rows)), nil
}

// Select returns the rows matching f.
func (m *BadgerMedium) Select(_ context.Context, table string, f medium.Filter) ([]medium.Row, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return nil, nil
	}

	var out []medium.Row
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = m.scan(txn, table, f)
		return err
	})
	if err != nil {
		return nil, medium.Unavailable("badger select", err)
	}
	return out, nil
}

// Count returns the number of rows matching f.
func (m *BadgerMedium) Count(ctx context.Context, table string, f medium.Filter) (int, error) {
	rows, err := m.Select(ctx, table, f)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// scan collects matching rows. Key-restricted filters use point lookups;
// everything else iterates the table prefix.
func (m *BadgerMedium) scan(txn *badger.Txn, table string, f medium.Filter) ([]medium.Row, error) {
	var out []medium.Row

	if f.Keys != nil {
		for _, key := range f.Keys {
			item, err := txn.Get(rowKey(table, key))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return nil, err
			}
			row, ok, err := m.decode(item, key)
			if err != nil {
				return nil, err
			}
			if ok && f.Match(row) {
				out = append(out, row)
			}
		}
		return out, nil
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = tablePrefix(table)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(bytes.TrimPrefix(item.Key(), opts.Prefix))
		row, ok, err := m.decode(item, key)
		if err != nil {
			return nil, err
		}
		if ok && f.Match(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// decode reads a row value. Undecodable payloads are logged and skipped.
func (m *BadgerMedium) decode(item *badger.Item, key string) (medium.Row, bool, error) {
	value, err := item.ValueCopy(nil)
	if err != nil {
		return medium.Row{}, false, err
	}
	var row medium.Row
	if err := json.Unmarshal(value, &row); err != nil {
		m.logger.Warn("skipping undecodable row",
			"key", key,
			"error", domain.ErrMalformedRecord.WithCause(err))
		return medium.Row{}, false, nil
	}
	row.Key = key
	return row, true, nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (m *BadgerMedium) GC(ctx context.Context) (uint64, error) {
	startTime := time.Now()

	var runs uint64
	for ctx.Err() == nil {
		err := m.db.RunValueLogGC(m.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	m.lastGCTime.Store(time.Now().UnixMilli())
	m.gcRuns.Add(runs)
	if m.metricsGCRuns != nil {
		m.metricsGCRuns.Add(float64(runs))
	}

	m.logger.Debug("gc completed",
		"rewrites", runs,
		"elapsed", time.Since(startTime))

	return runs, nil
}

// Stats returns storage statistics.
func (m *BadgerMedium) Stats() BadgerStats {
	lsm, vlog := m.db.Size()
	return BadgerStats{
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		TotalSize:    uint64(lsm + vlog),
		LastGCTime:   m.lastGCTime.Load(),
		GCRuns:       m.gcRuns.Load(),
	}
}

// Close stops background work and closes the database.
func (m *BadgerMedium) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.logger.Info("shutting down badger medium")
		close(m.stopCh)
		m.wg.Wait()
		if cerr := m.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
		}
	})
	return err
}

// RegisterMetrics registers Badger size gauges with reg and starts
// refreshing them.
func (m *BadgerMedium) RegisterMetrics(reg prometheus.Registerer) *BadgerMedium {
	m.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "datalayer",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	m.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "datalayer",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	m.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "datalayer",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	m.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "datalayer",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by Badger garbage collection",
	})

	reg.MustRegister(
		m.metricsLSMSize,
		m.metricsValueLogSize,
		m.metricsLastGCTime,
		m.metricsGCRuns,
	)

	m.refreshMetrics()
	m.wg.Add(1)
	go m.metricsUpdateLoop()

	return m
}

func (m *BadgerMedium) refreshMetrics() {
	stats := m.Stats()
	m.metricsLSMSize.Set(float64(stats.LSMSize))
	m.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	if stats.LastGCTime > 0 {
		m.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0)
	}
}

func (m *BadgerMedium) metricsUpdateLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refreshMetrics()
		case <-m.stopCh:
			return
		}
	}
}

func (m *BadgerMedium) gcLoop() {
	defer m.wg.Done()

	interval, err := time.ParseDuration(m.cfg.GCInterval)
	if err != nil || interval <= 0 {
		m.logger.Warn("invalid gc_interval, using default 10m", "value", m.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := m.GC(ctx); err != nil {
				m.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-m.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
