package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// UpdateFunc is called after a single-row write succeeded.
type UpdateFunc func(ctx context.Context, key string, rec domain.Record)

// RemoveFunc is called after rows were removed. keys is sorted and never
// empty.
type RemoveFunc func(ctx context.Context, keys []string)

// Listener observes changes to one table.
//
// Hooks run synchronously on the table executor after the durable write,
// so they must be fast. A hook may read or write other tables, but must
// pass ctx along: a call back into the same table with ctx fails with
// domain.ErrReentrantCall, as does a call that would wait on a table
// whose own running hook is waiting on this one. A hook that drops ctx
// loses both checks and can deadlock.
type Listener interface {
	OnUpdate(ctx context.Context, key string, rec domain.Record)
	OnRemove(ctx context.Context, keys []string)
}

// ListenerFuncs adapts optional functions to a Listener.
type ListenerFuncs struct {
	Update UpdateFunc
	Remove RemoveFunc
}

// OnUpdate implements Listener.
func (f ListenerFuncs) OnUpdate(ctx context.Context, key string, rec domain.Record) {
	if f.Update != nil {
		f.Update(ctx, key, rec)
	}
}

// OnRemove implements Listener.
func (f ListenerFuncs) OnRemove(ctx context.Context, keys []string) {
	if f.Remove != nil {
		f.Remove(ctx, keys)
	}
}

// TableConfig is the construction configuration of a Table.
type TableConfig struct {
	// Name identifies the table within its medium.
	Name string

	// IncludeExpired makes reads ignore the expiry filter (raw mode).
	IncludeExpired bool

	// OnUpdate and OnRemove are optional construction-time hooks.
	OnUpdate UpdateFunc
	OnRemove RemoveFunc
}

type subscription struct {
	id uint64
	l  Listener
}

// notifier fans change events out to the table's hooks.
type notifier struct {
	table  string
	logger *slog.Logger
	obs    Observer

	mu     sync.Mutex
	subs   []subscription
	nextID uint64
}

func newNotifier(table string, base ListenerFuncs, logger *slog.Logger, obs Observer) *notifier {
	n := &notifier{table: table, logger: logger, obs: obs}
	if base.Update != nil || base.Remove != nil {
		n.add(base)
	}
	return n
}

func (n *notifier) add(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

func (n *notifier) snapshot() []subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subs
}

func (n *notifier) updated(ctx context.Context, key string, rec domain.Record) {
	for _, s := range n.snapshot() {
		n.call(ctx, "update", func() { s.l.OnUpdate(ctx, key, rec) })
	}
}

// removed sorts keys in place and notifies when keys is non-empty.
func (n *notifier) removed(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	for _, s := range n.snapshot() {
		listenerKeys := append([]string(nil), keys...)
		n.call(ctx, "remove", func() { s.l.OnRemove(ctx, listenerKeys) })
	}
}

func (n *notifier) call(ctx context.Context, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.obs.NotifierPanic(n.table)
			n.logger.ErrorContext(ctx, "change hook panicked",
				"table", n.table,
				"hook", hook,
				"panic", fmt.Sprint(r))
		}
	}()
	fn()
}
