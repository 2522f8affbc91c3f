package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// DefaultPrefix namespaces table hashes.
const DefaultPrefix = "datalayer"

const maxWatchRetries = 4

// Store is a Redis-backed medium.
type Store struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
	owned  bool

	tls     *tls.Config
	onClose []func()
}

var _ medium.Medium = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the hash key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger used to report undecodable rows.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTLS makes Dial connect over TLS.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Store) {
		s.tls = cfg
	}
}

// WithCloseHook registers fn to run when the store is closed.
func WithCloseHook(fn func()) Option {
	return func(s *Store) {
		if fn != nil {
			s.onClose = append(s.onClose, fn)
		}
	}
}

// New wraps an existing client. Close does not close the client.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the server answers. Close closes
// the client.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	s := New(nil, opts...)
	s.client = goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db, TLSConfig: s.tls})
	s.owned = true
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.Close()
		return nil, medium.Unavailable("ping redis "+addr, err)
	}
	return s, nil
}

func (s *Store) hashKey(table string) string {
	return s.prefix + ":" + table
}

// EnsureTable validates the name. Hashes are created on first write.
func (s *Store) EnsureTable(_ context.Context, table string) error {
	return medium.ValidateTableName(table)
}

// Replace inserts row, replacing any row with the same key.
func (s *Store) Replace(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return 0, medium.Unavailable("encode row", err)
	}
	if err := s.client.HSet(ctx, s.hashKey(table), row.Key, payload).Err(); err != nil {
		return 0, medium.Unavailable("hset "+table, err)
	}
	return 1, nil
}

// Update rewrites the row matching row.Key under WATCH so a concurrent
// delete is not resurrected.
func (s *Store) Update(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return 0, medium.Unavailable("encode row", err)
	}
	key := s.hashKey(table)

	var n int64
	err = s.watch(ctx, key, func(tx *goredis.Tx) error {
		n = 0
		exists, err := tx.HExists(ctx, key, row.Key).Result()
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, row.Key, payload)
			return nil
		})
		if err == nil {
			n = 1
		}
		return err
	})
	if err != nil {
		return 0, medium.Unavailable("update "+table, err)
	}
	return n, nil
}

// Delete removes the rows matching f.
func (s *Store) Delete(ctx context.Context, table string, f medium.Filter) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	if f.MatchesNothing() {
		return 0, nil
	}
	key := s.hashKey(table)

	if f.Keys == nil && f.Scope == medium.AnyExpiry {
		// Drops the whole hash, undecodable fields included.
		var hlen *goredis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			hlen = pipe.HLen(ctx, key)
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return 0, medium.Unavailable("del "+table, err)
		}
		return hlen.Val(), nil
	}

	if f.Keys != nil && f.Scope == medium.AnyExpiry {
		n, err := s.client.HDel(ctx, key, f.Keys...).Result()
		if err != nil {
			return 0, medium.Unavailable("hdel "+table, err)
		}
		return n, nil
	}

	var n int64
	err := s.watch(ctx, key, func(tx *goredis.Tx) error {
		n = 0
		rows, err := s.load(ctx, tx, key, f)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		fields := make([]string, 0, len(rows))
		for _, r := range rows {
			fields = append(fields, r.Key)
		}
		var del *goredis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			del = pipe.HDel(ctx, key, fields...)
			return nil
		})
		if err != nil {
			return err
		}
		n = del.Val()
		return nil
	})
	if err != nil {
		return 0, medium.Unavailable("delete "+table, err)
	}
	return n, nil
}

// Select returns the rows matching f.
func (s *Store) Select(ctx context.Context, table string, f medium.Filter) ([]medium.Row, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return nil, nil
	}
	rows, err := s.load(ctx, s.client, s.hashKey(table), f)
	if err != nil {
		return nil, medium.Unavailable("select "+table, err)
	}
	return rows, nil
}

// Count returns the number of rows matching f.
func (s *Store) Count(ctx context.Context, table string, f medium.Filter) (int, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	if f.MatchesNothing() {
		return 0, nil
	}
	// Counts decoded rows so the result agrees with Select.
	rows, err := s.load(ctx, s.client, s.hashKey(table), f)
	if err != nil {
		return 0, medium.Unavailable("count "+table, err)
	}
	return len(rows), nil
}

// Close runs the close hooks and closes the client when the store
// dialed it.
func (s *Store) Close() error {
	for _, fn := range s.onClose {
		fn()
	}
	s.onClose = nil
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// hashReader is satisfied by both the client and a WATCH transaction.
type hashReader interface {
	HMGet(ctx context.Context, key string, fields ...string) *goredis.SliceCmd
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

// load fetches the candidate rows of a hash and filters them.
func (s *Store) load(ctx context.Context, c hashReader, key string, f medium.Filter) ([]medium.Row, error) {
	var raw map[string]string
	if f.Keys != nil {
		vals, err := c.HMGet(ctx, key, f.Keys...).Result()
		if err != nil {
			return nil, err
		}
		raw = make(map[string]string, len(vals))
		for i, v := range vals {
			if str, ok := v.(string); ok {
				raw[f.Keys[i]] = str
			}
		}
	} else {
		all, err := c.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		raw = all
	}

	out := make([]medium.Row, 0, len(raw))
	for field, payload := range raw {
		var row medium.Row
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			s.logger.Warn("skipping undecodable row", "table_key", key, "key", field, "error", err)
			continue
		}
		row.Key = field
		if f.Match(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) watch(ctx context.Context, key string, fn func(tx *goredis.Tx) error) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return err
}
