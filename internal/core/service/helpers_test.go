package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage"
	"github.com/yndnr/datalayer-go/internal/storage/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *testClock {
	return &testClock{t: time.UnixMilli(1_700_000_000_000)}
}

// newEngine returns an engine over a fresh in-memory medium.
func newEngine(t *testing.T, clock *testClock) *storage.Engine {
	t.Helper()
	eng := storage.NewEngine(memory.New(), storage.WithClock(clock.Now))
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func openTable(t *testing.T, eng *storage.Engine, name string) *storage.Table {
	t.Helper()
	tbl, err := eng.Table(context.Background(), storage.TableConfig{Name: name})
	if err != nil {
		t.Fatalf("Table(%s): %v", name, err)
	}
	return tbl
}

func seed(t *testing.T, tbl *storage.Table, key string, value any, expiry domain.Expiry) {
	t.Helper()
	rec, err := domain.NewRecord(key, value, expiry)
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert(%s): %v", key, err)
	}
}

func keysOf(t *testing.T, tbl *storage.Table) []string {
	t.Helper()
	keys, err := tbl.Keys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

func sameStrings(a, b []string) bool {
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
