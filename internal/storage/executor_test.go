package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

func TestTable_HookReentryFailsFast(t *testing.T) {
	var (
		tbl       *Table
		reentryMu sync.Mutex
		reentry   error
	)
	hook := func(ctx context.Context, key string, _ domain.Record) {
		_, _, err := tbl.Get(ctx, key)
		reentryMu.Lock()
		reentry = err
		reentryMu.Unlock()
	}
	tbl = newTestTable(t, memoryMedium(), TableConfig{OnUpdate: hook}, newFakeClock())

	done := make(chan error, 1)
	go func() {
		done <- tbl.Upsert(context.Background(), mustRecord(t, "k", "v", domain.Forever()))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reentrant hook deadlocked the table")
	}

	reentryMu.Lock()
	defer reentryMu.Unlock()
	if !errors.Is(reentry, domain.ErrReentrantCall) {
		t.Errorf("reentrant Get = %v, want ErrReentrantCall", reentry)
	}
}

func TestTable_HookMayUseOtherTables(t *testing.T) {
	m := memoryMedium()
	clock := newFakeClock()
	audit := newTestTable(t, m, TableConfig{Name: "audit"}, clock)

	var (
		mu      sync.Mutex
		hookErr error
		backErr error
		primary *Table
	)
	// audit hook tries to call back into primary, which is mid-unit.
	audit.Subscribe(ListenerFuncs{Update: func(ctx context.Context, key string, _ domain.Record) {
		_, err := primary.Count(ctx)
		mu.Lock()
		backErr = err
		mu.Unlock()
	}})
	primary = newTestTable(t, m, TableConfig{Name: "primary", OnUpdate: func(ctx context.Context, key string, _ domain.Record) {
		err := audit.Upsert(ctx, domain.Record{Key: "last", Value: key})
		mu.Lock()
		hookErr = err
		mu.Unlock()
	}}, clock)

	ctx := context.Background()
	if err := primary.Upsert(ctx, mustRecord(t, "k", "v", domain.Forever())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hookErr != nil {
		t.Errorf("cross-table write from hook: %v", hookErr)
	}
	if !errors.Is(backErr, domain.ErrReentrantCall) {
		t.Errorf("nested call back into primary = %v, want ErrReentrantCall", backErr)
	}
	rec, ok, _ := audit.Get(ctx, "last")
	if !ok || rec.Value != "k" {
		t.Errorf("audit row = %+v, %v", rec, ok)
	}
}

func TestTable_CrossTableHookCycleFailsFast(t *testing.T) {
	m := memoryMedium()
	clock := newFakeClock()
	var (
		mu       sync.Mutex
		errs     = map[string]error{}
		started  sync.WaitGroup
		ta, tb   *Table
		hookFrom = func(self string, other **Table) UpdateFunc {
			return func(ctx context.Context, key string, _ domain.Record) {
				if key != self+"1" {
					return
				}
				// Both hooks are running before either calls across.
				started.Done()
				started.Wait()
				err := (*other).Upsert(ctx, domain.Record{Key: "from_" + self, Value: "x"})
				mu.Lock()
				errs[self] = err
				mu.Unlock()
			}
		}
	)
	started.Add(2)
	ta = newTestTable(t, m, TableConfig{Name: "a", OnUpdate: hookFrom("a", &tb)}, clock)
	tb = newTestTable(t, m, TableConfig{Name: "b", OnUpdate: hookFrom("b", &ta)}, clock)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = ta.Upsert(ctx, mustRecord(t, "a1", "v", domain.Forever())) }()
	go func() { defer wg.Done(); _ = tb.Upsert(ctx, mustRecord(t, "b1", "v", domain.Forever())) }()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hooks writing each other's tables deadlocked")
	}

	mu.Lock()
	defer mu.Unlock()
	var failed, ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrReentrantCall):
			failed++
		default:
			t.Errorf("unexpected hook error: %v", err)
		}
	}
	if failed != 1 || ok != 1 {
		t.Errorf("hook results = %v, want one success and one ErrReentrantCall", errs)
	}
}

func TestTable_NotificationsPrecedeNextOperation(t *testing.T) {
	m := memoryMedium()
	var (
		mu     sync.Mutex
		events []string
	)
	tbl := newTestTable(t, m, TableConfig{
		OnUpdate: func(ctx context.Context, key string, _ domain.Record) {
			// The write is durable before the hook runs.
			rows, _ := m.Select(ctx, "datalayer", medium.ByKey(key))
			mu.Lock()
			defer mu.Unlock()
			if len(rows) == 1 {
				events = append(events, "update:"+key)
			} else {
				events = append(events, "missing:"+key)
			}
		},
		OnRemove: func(_ context.Context, keys []string) {
			mu.Lock()
			defer mu.Unlock()
			for _, k := range keys {
				events = append(events, "remove:"+k)
			}
		},
	}, newFakeClock())
	ctx := context.Background()

	_ = tbl.Upsert(ctx, mustRecord(t, "a", 1, domain.Forever()))
	_ = tbl.Delete(ctx, "a")
	_ = tbl.Upsert(ctx, mustRecord(t, "b", 2, domain.Forever()))

	mu.Lock()
	defer mu.Unlock()
	want := []string{"update:a", "remove:a", "update:b"}
	if !equalStrings(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestTable_CallerTimeoutDoesNotCancelUnit(t *testing.T) {
	m := memoryMedium()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	tbl := newTestTable(t, m, TableConfig{OnUpdate: func(_ context.Context, key string, _ domain.Record) {
		if key == "blocker" {
			entered <- struct{}{}
			<-release
		}
	}}, newFakeClock())

	first := make(chan error, 1)
	go func() {
		first <- tbl.Upsert(context.Background(), mustRecord(t, "blocker", "v", domain.Forever()))
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tbl.Upsert(ctx, mustRecord(t, "queued", "v", domain.Forever()))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("queued Upsert = %v, want DeadlineExceeded", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("blocker Upsert: %v", err)
	}

	ok, err := tbl.Contains(context.Background(), "queued")
	if err != nil || !ok {
		t.Errorf("abandoned unit did not complete: %v, %v", ok, err)
	}
}

func TestTable_CloseDrainsQueue(t *testing.T) {
	m := memoryMedium()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	tbl, err := NewTable(context.Background(), m, TableConfig{Name: "datalayer", OnUpdate: func(_ context.Context, key string, _ domain.Record) {
		if key == "blocker" {
			entered <- struct{}{}
			<-release
		}
	}})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	const queued = 5
	errs := make(chan error, queued+1)
	go func() { errs <- tbl.Insert(ctx, mustRecord(t, "blocker", "v", domain.Forever())) }()
	<-entered

	for i := 0; i < queued; i++ {
		key := string(rune('a' + i))
		go func() { errs <- tbl.Insert(ctx, mustRecord(t, key, "v", domain.Forever())) }()
	}
	deadline := time.Now().Add(5 * time.Second)
	for tbl.exec.pending.Load() < queued+1 {
		if time.Now().After(deadline) {
			t.Fatal("units never queued")
		}
		time.Sleep(time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		tbl.Close()
		close(closed)
	}()
	close(release)
	<-closed

	for i := 0; i < queued+1; i++ {
		if err := <-errs; err != nil {
			t.Errorf("queued unit: %v", err)
		}
	}
	if n, _ := m.Count(ctx, "datalayer", medium.All()); n != queued+1 {
		t.Errorf("rows = %d, want %d", n, queued+1)
	}
	if _, err := tbl.Count(ctx); !errors.Is(err, domain.ErrTableClosed) {
		t.Errorf("Count after Close = %v, want ErrTableClosed", err)
	}
	tbl.Close()
}

func TestTable_ObserverSeesOperations(t *testing.T) {
	obs := newCountingObserver()
	tbl := newTestTable(t, memoryMedium(), TableConfig{}, newFakeClock(), WithMetrics(obs))
	ctx := context.Background()

	_ = tbl.Upsert(ctx, mustRecord(t, "k", "v", domain.Forever()))
	_, _, _ = tbl.Get(ctx, "k")
	_ = tbl.Delete(ctx, "k")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for _, op := range []string{"upsert", "get", "delete"} {
		if obs.ops[op] != 1 {
			t.Errorf("ops[%s] = %d, want 1", op, obs.ops[op])
		}
	}
	if obs.removed[ReasonDelete] != 1 {
		t.Errorf("removed[delete] = %d", obs.removed[ReasonDelete])
	}
}

func TestTable_UnitSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	spans := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))

	tbl := newTestTable(t, memoryMedium(), TableConfig{}, newFakeClock())
	ctx := context.Background()
	_ = tbl.Upsert(ctx, mustRecord(t, "k", "v", domain.Forever()))
	_, _, _ = tbl.Get(ctx, "k")

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	if !equalStrings(names, []string{"storage.upsert", "storage.get"}) {
		t.Errorf("spans = %v", names)
	}
}
