package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/datalayer-go/internal/telemetry/logger"
)

// SessionPurger drops the SESSION-scoped records of one table.
type SessionPurger interface {
	Name() string
	OnNewSession(ctx context.Context, sessionID int64) error
}

// SessionEvent announces that a new analytics session started.
type SessionEvent struct {
	ID        int64
	StartedAt time.Time
}

// SessionBoundary fans a new-session signal out to every bound table.
type SessionBoundary struct {
	logger *slog.Logger

	mu     sync.RWMutex
	tables []SessionPurger
}

// NewSessionBoundary binds tables to the session boundary.
func NewSessionBoundary(log *slog.Logger, tables ...SessionPurger) *SessionBoundary {
	if log == nil {
		log = slog.Default()
	}
	return &SessionBoundary{logger: log, tables: tables}
}

// Bind adds a table.
func (b *SessionBoundary) Bind(t SessionPurger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = append(b.tables, t)
}

// NewSession purges SESSION-scoped records from every bound table. The
// id is not interpreted. A failing table does not stop the others.
func (b *SessionBoundary) NewSession(ctx context.Context, sessionID int64) error {
	b.mu.RLock()
	tables := append([]SessionPurger(nil), b.tables...)
	b.mu.RUnlock()

	ctx = logger.WithSessionID(ctx, sessionID)
	var errs []error
	for _, t := range tables {
		if err := t.OnNewSession(ctx, sessionID); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", t.Name(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		b.logger.ErrorContext(ctx, "session boundary failed", "session_id", sessionID, "error", err)
		return err
	}
	b.logger.InfoContext(ctx, "new session started", "session_id", sessionID, "tables", len(tables))
	return nil
}

// Run handles events until ctx ends or events is closed. Failures are
// logged; they do not stop the loop.
func (b *SessionBoundary) Run(ctx context.Context, events <-chan SessionEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = b.NewSession(ctx, ev.ID)
		case <-ctx.Done():
			return
		}
	}
}

// SessionTicker emits a SessionEvent every interval until ctx ends. Ids
// are the start time in Unix milliseconds.
func SessionTicker(ctx context.Context, interval time.Duration) <-chan SessionEvent {
	out := make(chan SessionEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				select {
				case out <- SessionEvent{ID: now.UnixMilli(), StartedAt: now}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
