package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
)

// BackupSource is a table whose records can be snapshotted.
type BackupSource interface {
	Name() string
	GetAll(ctx context.Context) (map[string]domain.Record, error)
}

// RestoreTarget is a table snapshot records are written back into.
type RestoreTarget interface {
	Name() string
	Restore(ctx context.Context, rec domain.Record) error
	Clear(ctx context.Context) error
}

// Backups takes and restores table snapshots.
type Backups struct {
	snapshots *snapshot.Manager
	logger    *slog.Logger
}

// NewBackups creates a backup service over m.
func NewBackups(m *snapshot.Manager, logger *slog.Logger) *Backups {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backups{snapshots: m, logger: logger}
}

// Backup snapshots the live records of src and applies the retention
// policy. A prune failure is logged; the snapshot is still returned.
func (b *Backups) Backup(ctx context.Context, src BackupSource) (*snapshot.Info, error) {
	all, err := src.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", src.Name(), err)
	}
	records := make([]domain.Record, 0, len(all))
	for _, rec := range all {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	info, err := b.snapshots.Create(src.Name(), records)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", src.Name(), err)
	}
	if _, err := b.snapshots.Prune(); err != nil {
		b.logger.WarnContext(ctx, "snapshot prune failed", "error", err)
	}
	return info, nil
}

// Restore writes the records of a snapshot into dst. An empty id
// selects the newest snapshot taken of dst. With replace, dst is
// cleared first; otherwise snapshot records overwrite matching keys
// and other rows are kept. Restored records keep their snapshot
// LastUpdated. It returns the number of records written.
func (b *Backups) Restore(ctx context.Context, dst RestoreTarget, id string, replace bool) (int, error) {
	var (
		snap *snapshot.Snapshot
		err  error
	)
	if id == "" {
		snap, err = b.snapshots.Latest(dst.Name())
	} else {
		snap, err = b.snapshots.Load(id)
	}
	if err != nil {
		return 0, err
	}

	if replace {
		if err := dst.Clear(ctx); err != nil {
			return 0, fmt.Errorf("restore %s: clear: %w", dst.Name(), err)
		}
	}

	var (
		n    int
		errs []error
	)
	for _, rec := range snap.Records {
		if err := dst.Restore(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %s: %w", dst.Name(), rec.Key, err))
			continue
		}
		n++
	}
	b.logger.InfoContext(ctx, "snapshot restored",
		"id", snap.Info.ID, "table", dst.Name(), "from_table", snap.Info.Table, "records", n, "replace", replace)
	return n, errors.Join(errs...)
}

// List returns every snapshot, oldest first.
func (b *Backups) List() ([]*snapshot.Info, error) {
	return b.snapshots.List()
}

// Prune applies the retention policy.
func (b *Backups) Prune() (int, error) {
	return b.snapshots.Prune()
}

// Run snapshots every source each interval until ctx ends.
func (b *Backups) Run(ctx context.Context, interval time.Duration, sources ...BackupSource) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, src := range sources {
				info, err := b.Backup(ctx, src)
				if err != nil {
					b.logger.ErrorContext(ctx, "backup failed", "table", src.Name(), "error", err)
					continue
				}
				b.logger.DebugContext(ctx, "backup taken", "id", info.ID, "records", info.RecordCount)
			}
		case <-ctx.Done():
			return
		}
	}
}
