package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredPurger removes the expired records of one table.
type ExpiredPurger interface {
	Name() string
	PurgeExpired(ctx context.Context) ([]string, error)
}

// Purger periodically removes expired records from a set of tables.
type Purger struct {
	tables    []ExpiredPurger
	interval  time.Duration
	onStartup bool
	logger    *slog.Logger
}

// PurgerConfig configures a Purger.
type PurgerConfig struct {
	Interval  time.Duration
	OnStartup bool
}

// NewPurger creates a purger over tables.
func NewPurger(cfg PurgerConfig, logger *slog.Logger, tables ...ExpiredPurger) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		tables:    tables,
		interval:  cfg.Interval,
		onStartup: cfg.OnStartup,
		logger:    logger,
	}
}

// PurgeOnce purges every table and returns the number of records removed.
func (p *Purger) PurgeOnce(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, t := range p.tables {
		keys, err := t.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", t.Name(), err))
			continue
		}
		if len(keys) > 0 {
			p.logger.DebugContext(ctx, "expired records purged", "table", t.Name(), "count", len(keys))
		}
		total += len(keys)
	}
	return total, errors.Join(errs...)
}

// Run purges on startup when configured, then every interval until ctx
// ends. A non-positive interval disables the periodic purge.
func (p *Purger) Run(ctx context.Context) {
	if p.onStartup {
		p.tick(ctx)
	}
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Purger) tick(ctx context.Context) {
	start := time.Now()
	n, err := p.PurgeOnce(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "purge failed", "removed", n, "error", err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "purge completed", "removed", n, "elapsed", time.Since(start))
	}
}
