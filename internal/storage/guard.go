package storage

import (
	"context"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// guarded wraps a medium so every error it returns reaches callers as
// domain.ErrStorageUnavailable, including errors from media outside this
// module that return plain errors.
type guarded struct {
	medium.Medium
}

func guard(m medium.Medium) medium.Medium {
	if g, ok := m.(guarded); ok {
		return g
	}
	return guarded{Medium: m}
}

func storageErr(op string, err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return medium.Unavailable(op, err)
}

func (g guarded) EnsureTable(ctx context.Context, table string) error {
	return storageErr("ensure table "+table, g.Medium.EnsureTable(ctx, table))
}

func (g guarded) Replace(ctx context.Context, table string, row medium.Row) (int64, error) {
	n, err := g.Medium.Replace(ctx, table, row)
	return n, storageErr("replace "+table, err)
}

func (g guarded) Update(ctx context.Context, table string, row medium.Row) (int64, error) {
	n, err := g.Medium.Update(ctx, table, row)
	return n, storageErr("update "+table, err)
}

func (g guarded) Delete(ctx context.Context, table string, f medium.Filter) (int64, error) {
	n, err := g.Medium.Delete(ctx, table, f)
	return n, storageErr("delete "+table, err)
}

func (g guarded) Select(ctx context.Context, table string, f medium.Filter) ([]medium.Row, error) {
	rows, err := g.Medium.Select(ctx, table, f)
	return rows, storageErr("select "+table, err)
}

func (g guarded) Count(ctx context.Context, table string, f medium.Filter) (int, error) {
	n, err := g.Medium.Count(ctx, table, f)
	return n, storageErr("count "+table, err)
}
