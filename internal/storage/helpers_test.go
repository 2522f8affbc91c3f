package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
	"github.com/yndnr/datalayer-go/internal/storage/memory"
	redismedium "github.com/yndnr/datalayer-go/internal/storage/redis"
	"github.com/yndnr/datalayer-go/internal/storage/sqlite"
)

const testEpoch int64 = 1_700_000_000_000

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(testEpoch)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Millis() int64 { return c.Now().UnixMilli() }

type recorder struct {
	mu       sync.Mutex
	updates  []string
	records  []domain.Record
	removals [][]string
}

func (r *recorder) OnUpdate(_ context.Context, key string, rec domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, key)
	r.records = append(r.records, rec)
}

func (r *recorder) OnRemove(_ context.Context, keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals = append(r.removals, append([]string(nil), keys...))
}

func (r *recorder) Updates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updates...)
}

func (r *recorder) Removals() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.removals...)
}

type countingObserver struct {
	mu      sync.Mutex
	ops     map[string]int
	removed map[string]int
	panics  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ops: map[string]int{}, removed: map[string]int{}}
}

func (o *countingObserver) ObserveOperation(_, op string, _ error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op]++
}

func (o *countingObserver) AddRemoved(_, reason string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed[reason] += n
}

func (o *countingObserver) NotifierPanic(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.panics++
}

func (o *countingObserver) SetQueueDepth(string, int) {}

func (o *countingObserver) Panics() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.panics
}

func (o *countingObserver) Removed(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.removed[reason]
}

// forEachMedium runs fn once per medium implementation.
func forEachMedium(t *testing.T, fn func(t *testing.T, m medium.Medium)) {
	t.Helper()

	factories := []struct {
		name string
		open func(t *testing.T) medium.Medium
	}{
		{"memory", func(t *testing.T) medium.Medium { return memory.New() }},
		{"sqlite", func(t *testing.T) medium.Medium {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "datalayer.db"))
			if err != nil {
				t.Fatalf("sqlite.Open: %v", err)
			}
			return s
		}},
		{"badger", func(t *testing.T) medium.Medium {
			m, err := OpenBadger(BadgerConfig{InMemory: true}, nil)
			if err != nil {
				t.Fatalf("OpenBadger: %v", err)
			}
			return m
		}},
		{"redis", func(t *testing.T) medium.Medium {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis.Run failed: %v", err)
			}
			t.Cleanup(mr.Close)
			client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return redismedium.New(client)
		}},
	}

	for _, f := range factories {
		t.Run(f.name, func(t *testing.T) {
			m := f.open(t)
			t.Cleanup(func() { _ = m.Close() })
			fn(t, m)
		})
	}
}

func newTestTable(t *testing.T, m medium.Medium, cfg TableConfig, clock *fakeClock, opts ...Option) *Table {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "datalayer"
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	tbl, err := NewTable(context.Background(), m, cfg, opts...)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	t.Cleanup(tbl.Close)
	return tbl
}

func mustRecord(t *testing.T, key string, value any, expiry domain.Expiry) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(key, value, expiry)
	if err != nil {
		t.Fatalf("NewRecord(%q): %v", key, err)
	}
	return rec
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func memoryMedium() medium.Medium {
	return memory.New()
}

var errBackendDown = errors.New("backend down")

// failingMedium delegates to a working medium until fail is set, then
// returns a plain error from every call.
type failingMedium struct {
	medium.Medium
	fail atomic.Bool
}

func (f *failingMedium) err() error {
	if f.fail.Load() {
		return errBackendDown
	}
	return nil
}

func (f *failingMedium) Replace(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.Medium.Replace(ctx, table, row)
}

func (f *failingMedium) Update(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.Medium.Update(ctx, table, row)
}

func (f *failingMedium) Delete(ctx context.Context, table string, filter medium.Filter) (int64, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.Medium.Delete(ctx, table, filter)
}

func (f *failingMedium) Select(ctx context.Context, table string, filter medium.Filter) ([]medium.Row, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Medium.Select(ctx, table, filter)
}

func (f *failingMedium) Count(ctx context.Context, table string, filter medium.Filter) (int, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.Medium.Count(ctx, table, filter)
}
