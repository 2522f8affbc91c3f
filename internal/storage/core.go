package storage

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// Removal reasons reported to the Observer.
const (
	ReasonDelete  = "delete"
	ReasonClear   = "clear"
	ReasonExpired = "expired"
	ReasonSession = "session"
)

// core holds the unserialized primitives of a table. It has no reference
// to the executor: everything here runs inside a unit and composes other
// core methods directly.
type core struct {
	name   string
	m      medium.Medium
	raw    bool
	clock  func() time.Time
	logger *slog.Logger
	notify *notifier
	obs    Observer
}

func (c *core) now() int64 {
	return c.clock().UnixMilli()
}

// visible restricts f to live rows unless the table is raw.
func (c *core) visible(f medium.Filter, now int64) medium.Filter {
	if !c.raw {
		f.Scope = medium.NotExpired
		f.Now = now
	}
	return f
}

func (c *core) decode(ctx context.Context, row medium.Row) domain.Record {
	rec, err := row.Record()
	if err != nil {
		c.logger.WarnContext(ctx, "malformed row, decoded with defaults",
			"table", c.name,
			"key", row.Key,
			"error", err)
	}
	return rec
}

func (c *core) selectRecords(ctx context.Context, f medium.Filter) ([]domain.Record, error) {
	rows, err := c.m.Select(ctx, c.name, f)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.decode(ctx, row))
	}
	return out, nil
}

func (c *core) getAll(ctx context.Context) (map[string]domain.Record, error) {
	recs, err := c.selectRecords(ctx, c.visible(medium.All(), c.now()))
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Record, len(recs))
	for _, rec := range recs {
		out[rec.Key] = rec
	}
	return out, nil
}

func (c *core) get(ctx context.Context, key string) (domain.Record, bool, error) {
	return c.first(ctx, c.visible(medium.ByKey(key), c.now()))
}

// lookup reads a row ignoring the expiry filter.
func (c *core) lookup(ctx context.Context, key string) (domain.Record, bool, error) {
	return c.first(ctx, medium.ByKey(key))
}

func (c *core) first(ctx context.Context, f medium.Filter) (domain.Record, bool, error) {
	recs, err := c.selectRecords(ctx, f)
	if err != nil || len(recs) == 0 {
		return domain.Record{}, false, err
	}
	return recs[0], true, nil
}

// insert writes rec, replacing any row with the same key. An unset expiry
// is stored as SESSION.
func (c *core) insert(ctx context.Context, rec domain.Record) (bool, error) {
	return c.replace(ctx, rec, true)
}

// restore is insert that keeps rec.LastUpdated when it is set.
func (c *core) restore(ctx context.Context, rec domain.Record) (bool, error) {
	return c.replace(ctx, rec, rec.LastUpdated == nil)
}

func (c *core) replace(ctx context.Context, rec domain.Record, stamp bool) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if !rec.Expiry.IsSet() {
		rec.Expiry = domain.Session()
	}
	if stamp {
		rec = rec.Stamp(c.now())
	}

	n, err := c.m.Replace(ctx, c.name, medium.FromRecord(rec))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	c.notify.updated(ctx, rec.Key, rec)
	return true, nil
}

// update rewrites the row with rec.Key. An unset expiry keeps the stored
// row's expiry. A missing row is a silent no-op.
func (c *core) update(ctx context.Context, rec domain.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if !rec.Expiry.IsSet() {
		old, ok, err := c.lookup(ctx, rec.Key)
		if err != nil || !ok {
			return false, err
		}
		rec.Expiry = old.Expiry
	}
	rec = rec.Stamp(c.now())

	n, err := c.m.Update(ctx, c.name, medium.FromRecord(rec))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	c.notify.updated(ctx, rec.Key, rec)
	return true, nil
}

// upsert is the canonical write path. An expired row overwritten without
// an explicit expiry is promoted to SESSION instead of inheriting a stale
// deadline; a new row without one defaults to SESSION.
func (c *core) upsert(ctx context.Context, rec domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	old, ok, err := c.lookup(ctx, rec.Key)
	if err != nil {
		return err
	}
	if !ok {
		_, err = c.insert(ctx, rec)
		return err
	}
	if !rec.Expiry.IsSet() && old.IsExpired(c.now()) {
		rec.Expiry = domain.Session()
	}
	_, err = c.update(ctx, rec)
	return err
}

func (c *core) delete(ctx context.Context, key string) (bool, error) {
	n, err := c.m.Delete(ctx, c.name, medium.ByKey(key))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	c.obs.AddRemoved(c.name, ReasonDelete, int(n))
	c.notify.removed(ctx, []string{key})
	return true, nil
}

// clear removes every row regardless of expiry and reports the keys that
// existed before the clear.
// clear drops the whole partition, undecodable rows included. Only the
// decoded keys are notified.
func (c *core) clear(ctx context.Context) ([]string, error) {
	rows, err := c.m.Select(ctx, c.name, medium.All())
	if err != nil {
		return nil, err
	}
	n, err := c.m.Delete(ctx, c.name, medium.All())
	if err != nil {
		return nil, err
	}
	if n == 0 && len(rows) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	c.obs.AddRemoved(c.name, ReasonClear, int(n))
	if len(keys) > 0 {
		c.notify.removed(ctx, keys)
	}
	return keys, nil
}

func (c *core) purgeExpired(ctx context.Context) ([]string, error) {
	return c.removeMatching(ctx, medium.Filter{Scope: medium.Expired, Now: c.now()}, ReasonExpired)
}

func (c *core) onNewSession(ctx context.Context, sessionID int64) ([]string, error) {
	keys, err := c.removeMatching(ctx, medium.Filter{Scope: medium.SessionScoped}, ReasonSession)
	if err == nil && len(keys) > 0 {
		c.logger.InfoContext(ctx, "session rows purged",
			"table", c.name,
			"session_id", sessionID,
			"count", len(keys))
	}
	return keys, err
}

// removeMatching selects the keys matching f, deletes them in one batch
// and notifies once. f carries a single now so the selected set and the
// deleted set agree.
func (c *core) removeMatching(ctx context.Context, f medium.Filter, reason string) ([]string, error) {
	rows, err := c.m.Select(ctx, c.name, f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}

	if _, err := c.m.Delete(ctx, c.name, medium.Filter{Keys: keys}); err != nil {
		return nil, err
	}
	c.obs.AddRemoved(c.name, reason, len(keys))
	c.notify.removed(ctx, keys)
	return keys, nil
}

func (c *core) keys(ctx context.Context) ([]string, error) {
	rows, err := c.m.Select(ctx, c.name, c.visible(medium.All(), c.now()))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *core) count(ctx context.Context) (int, error) {
	return c.m.Count(ctx, c.name, c.visible(medium.All(), c.now()))
}

func (c *core) contains(ctx context.Context, key string) (bool, error) {
	n, err := c.m.Count(ctx, c.name, c.visible(medium.ByKey(key), c.now()))
	return n > 0, err
}
