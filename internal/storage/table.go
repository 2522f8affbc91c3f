package storage

import (
	"context"
	"sync"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// Table is the serialized public surface of one named table.
//
// Every method, reads included, runs as a unit on the table's executor,
// so operations are totally ordered and the change notifications of one
// operation fire before the next operation starts. Callers block until
// their unit finishes or ctx ends; an abandoned unit still completes.
type Table struct {
	core   *core
	exec   *executor
	notify *notifier

	closeOnce sync.Once
}

// NewTable creates the table in m (if needed) and starts its executor.
func NewTable(ctx context.Context, m medium.Medium, cfg TableConfig, opts ...Option) (*Table, error) {
	return newTable(ctx, m, cfg, buildOptions(opts))
}

func newTable(ctx context.Context, m medium.Medium, cfg TableConfig, o options) (*Table, error) {
	if err := medium.ValidateTableName(cfg.Name); err != nil {
		return nil, err
	}
	m = guard(m)
	if err := m.EnsureTable(ctx, cfg.Name); err != nil {
		return nil, err
	}

	logger := o.logger.With("table", cfg.Name)
	n := newNotifier(cfg.Name, ListenerFuncs{Update: cfg.OnUpdate, Remove: cfg.OnRemove}, logger, o.observer)
	t := &Table{
		core: &core{
			name:   cfg.Name,
			m:      m,
			raw:    cfg.IncludeExpired,
			clock:  o.clock,
			logger: logger,
			notify: n,
			obs:    o.observer,
		},
		exec:   newExecutor(cfg.Name, o.queueSize, logger, o.observer),
		notify: n,
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.core.name }

// IncludesExpired reports whether the table is in raw mode.
func (t *Table) IncludesExpired() bool { return t.core.raw }

// GetAll returns every visible record keyed by record key.
func (t *Table) GetAll(ctx context.Context) (map[string]domain.Record, error) {
	var out map[string]domain.Record
	err := t.exec.do(ctx, "get_all", func(ctx context.Context) error {
		var err error
		out, err = t.core.getAll(ctx)
		return err
	})
	return out, err
}

// Get returns the visible record with key. A miss is ok == false.
func (t *Table) Get(ctx context.Context, key string) (domain.Record, bool, error) {
	var (
		rec domain.Record
		ok  bool
	)
	err := t.exec.do(ctx, "get", func(ctx context.Context) error {
		var err error
		rec, ok, err = t.core.get(ctx, key)
		return err
	})
	return rec, ok, err
}

// Insert writes rec, replacing any row with the same key.
func (t *Table) Insert(ctx context.Context, rec domain.Record) error {
	return t.exec.do(ctx, "insert", func(ctx context.Context) error {
		_, err := t.core.insert(ctx, rec)
		return err
	})
}

// Restore writes rec like Insert but keeps its LastUpdated stamp when
// set. It is the write path of snapshot restores.
func (t *Table) Restore(ctx context.Context, rec domain.Record) error {
	return t.exec.do(ctx, "restore", func(ctx context.Context) error {
		_, err := t.core.restore(ctx, rec)
		return err
	})
}

// Update rewrites the row with rec.Key. Missing rows are left alone and
// nothing is notified.
func (t *Table) Update(ctx context.Context, rec domain.Record) error {
	return t.exec.do(ctx, "update", func(ctx context.Context) error {
		_, err := t.core.update(ctx, rec)
		return err
	})
}

// Upsert is the canonical write path.
func (t *Table) Upsert(ctx context.Context, rec domain.Record) error {
	return t.exec.do(ctx, "upsert", func(ctx context.Context) error {
		return t.core.upsert(ctx, rec)
	})
}

// Delete removes key. Deleting an absent key is silent.
func (t *Table) Delete(ctx context.Context, key string) error {
	return t.exec.do(ctx, "delete", func(ctx context.Context) error {
		_, err := t.core.delete(ctx, key)
		return err
	})
}

// Clear removes every row, expired ones included.
func (t *Table) Clear(ctx context.Context) error {
	return t.exec.do(ctx, "clear", func(ctx context.Context) error {
		_, err := t.core.clear(ctx)
		return err
	})
}

// Keys returns the visible keys in ascending order.
func (t *Table) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := t.exec.do(ctx, "keys", func(ctx context.Context) error {
		var err error
		keys, err = t.core.keys(ctx)
		return err
	})
	return keys, err
}

// Count returns the number of visible rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	err := t.exec.do(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = t.core.count(ctx)
		return err
	})
	return n, err
}

// Contains reports whether key is visible.
func (t *Table) Contains(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := t.exec.do(ctx, "contains", func(ctx context.Context) error {
		var err error
		ok, err = t.core.contains(ctx, key)
		return err
	})
	return ok, err
}

// PurgeExpired removes every expired row in one batch and returns the
// removed keys.
func (t *Table) PurgeExpired(ctx context.Context) ([]string, error) {
	var keys []string
	err := t.exec.do(ctx, "purge_expired", func(ctx context.Context) error {
		var err error
		keys, err = t.core.purgeExpired(ctx)
		return err
	})
	return keys, err
}

// OnNewSession removes every SESSION row. The id is only logged: all
// session rows belong to the session that just ended.
func (t *Table) OnNewSession(ctx context.Context, sessionID int64) error {
	return t.exec.do(ctx, "new_session", func(ctx context.Context) error {
		_, err := t.core.onNewSession(ctx, sessionID)
		return err
	})
}

// Subscribe adds a listener and returns a func removing it.
func (t *Table) Subscribe(l Listener) (unsubscribe func()) {
	return t.notify.add(l)
}

// Close stops accepting operations and waits for queued ones to finish.
// It does not close the medium. Calling Close from a change hook
// deadlocks.
func (t *Table) Close() {
	t.closeOnce.Do(t.exec.close)
}
