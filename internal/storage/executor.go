package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/telemetry/tracer"
)

// unitChain marks a context as originating inside running units. Nested
// units (a hook on table A writing table B) extend the chain.
type unitChain struct {
	exec   *executor
	parent *unitChain
}

type unitCtxKey struct{}

func chainFrom(ctx context.Context) *unitChain {
	c, _ := ctx.Value(unitCtxKey{}).(*unitChain)
	return c
}

func (e *executor) runningIn(ctx context.Context) bool {
	for c := chainFrom(ctx); c != nil; c = c.parent {
		if c.exec == e {
			return true
		}
	}
	return false
}

// waits records, for each executor whose running unit is blocked on
// another table, the executor it waits for. A unit that would close a
// cycle fails instead of deadlocking.
var waits = struct {
	sync.Mutex
	on map[*executor]*executor
}{on: make(map[*executor]*executor)}

func waitFor(from, to *executor, op string) error {
	waits.Lock()
	defer waits.Unlock()
	for x := to; x != nil; x = waits.on[x] {
		if x == from {
			return domain.ErrReentrantCall.WithDetails(
				fmt.Sprintf("%s.%s from %s would deadlock", to.table, op, from.table))
		}
	}
	waits.on[from] = to
	return nil
}

func doneWaiting(from *executor) {
	waits.Lock()
	delete(waits.on, from)
	waits.Unlock()
}

type job struct {
	ctx  context.Context
	op   string
	fn   func(ctx context.Context) error
	err  error
	done chan struct{}
}

// executor runs the units of one table strictly one at a time in
// submission order.
type executor struct {
	table  string
	jobs   chan *job
	logger *slog.Logger
	obs    Observer

	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64
	stopped chan struct{}
}

func newExecutor(table string, queueSize int, logger *slog.Logger, obs Observer) *executor {
	e := &executor{
		table:   table,
		jobs:    make(chan *job, queueSize),
		logger:  logger,
		obs:     obs,
		stopped: make(chan struct{}),
	}
	go e.loop()
	return e
}

// do schedules fn and waits for it. When ctx ends first, do returns
// ctx.Err() but the unit still runs to completion.
func (e *executor) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if e.runningIn(ctx) {
		return domain.ErrReentrantCall.WithDetails(fmt.Sprintf("%s.%s", e.table, op))
	}
	if c := chainFrom(ctx); c != nil {
		if err := waitFor(c.exec, e, op); err != nil {
			return err
		}
		defer doneWaiting(c.exec)
	}

	j := &job{
		ctx:  context.WithoutCancel(ctx),
		op:   op,
		fn:   fn,
		done: make(chan struct{}),
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return domain.ErrTableClosed.WithDetails(e.table)
	}
	e.obs.SetQueueDepth(e.table, int(e.pending.Add(1)))
	select {
	case e.jobs <- j:
	case <-ctx.Done():
		e.obs.SetQueueDepth(e.table, int(e.pending.Add(-1)))
		e.mu.RUnlock()
		return ctx.Err()
	}
	e.mu.RUnlock()

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *executor) loop() {
	defer close(e.stopped)
	for j := range e.jobs {
		e.run(j)
	}
}

func (e *executor) run(j *job) {
	start := time.Now()
	opID := ulid.Make()
	ctx, span := tracer.StartSpan(j.ctx, "storage."+j.op,
		attribute.String("datalayer.table", e.table),
		attribute.String("datalayer.op_id", opID.String()))
	ctx = context.WithValue(ctx, unitCtxKey{}, &unitChain{exec: e, parent: chainFrom(j.ctx)})

	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("storage: unit %s.%s panicked: %v", e.table, j.op, r)
			e.logger.Error("unit panicked", "table", e.table, "op", j.op, "op_id", opID.String(), "panic", fmt.Sprint(r))
		}
		elapsed := time.Since(start)
		e.obs.ObserveOperation(e.table, j.op, j.err, elapsed)
		e.obs.SetQueueDepth(e.table, int(e.pending.Add(-1)))
		e.logger.Debug("unit finished",
			"table", e.table,
			"op", j.op,
			"op_id", opID.String(),
			"elapsed", elapsed,
			"error", j.err)
		tracer.End(span, j.err)
		close(j.done)
	}()

	j.err = j.fn(ctx)
}

// close stops accepting units and waits for queued ones to drain. It must
// not be called from inside a unit.
func (e *executor) close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()
	<-e.stopped
}
