package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yndnr/datalayer-go/internal/storage/medium"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// maxKeysPerStatement bounds the IN (...) list of a single statement.
const maxKeysPerStatement = 500

// Store is a SQLite-backed medium.
type Store struct {
	sqlDB *sql.DB
}

var _ medium.Medium = (*Store)(nil)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	var dsn string
	if path == MemoryPath {
		dsn = MemoryPath
	} else {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, medium.Unavailable("open sqlite db", err)
	}
	if path == MemoryPath {
		// Each connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, medium.Unavailable("ping sqlite db", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB { return s.sqlDB }

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsureTable creates the table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	if err := medium.ValidateTableName(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		"key"       TEXT PRIMARY KEY,
		"value"     TEXT,
		"type"      INTEGER,
		"timestamp" INTEGER NULL,
		"expiry"    INTEGER
	)`, quote(table))
	if _, err := s.sqlDB.ExecContext(ctx, stmt); err != nil {
		return medium.Unavailable("create table "+table, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ("expiry")`, quote(table+"_expiry_idx"), quote(table))
	if _, err := s.sqlDB.ExecContext(ctx, idx); err != nil {
		return medium.Unavailable("create expiry index "+table, err)
	}
	return nil
}

// Replace inserts row, replacing any row with the same key.
func (s *Store) Replace(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s ("key", "value", "type", "timestamp", "expiry") VALUES (?, ?, ?, ?, ?)`, quote(table))
	res, err := s.sqlDB.ExecContext(ctx, stmt, row.Key, row.Value, row.Type, nullInt(row.Timestamp), row.Expiry)
	if err != nil {
		return 0, medium.Unavailable("replace "+table, err)
	}
	return affected(res)
}

// Update rewrites the row matching row.Key.
func (s *Store) Update(ctx context.Context, table string, row medium.Row) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf(`UPDATE %s SET "value" = ?, "type" = ?, "timestamp" = ?, "expiry" = ? WHERE "key" = ?`, quote(table))
	res, err := s.sqlDB.ExecContext(ctx, stmt, row.Value, row.Type, nullInt(row.Timestamp), row.Expiry, row.Key)
	if err != nil {
		return 0, medium.Unavailable("update "+table, err)
	}
	return affected(res)
}

// Delete removes the rows matching f. Large key sets are deleted in one
// transaction split over several statements.
func (s *Store) Delete(ctx context.Context, table string, f medium.Filter) (int64, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	if f.MatchesNothing() {
		return 0, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, medium.Unavailable("begin delete "+table, err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, part := range split(f) {
		where, args := whereClause(part)
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s%s`, quote(table), where), args...)
		if err != nil {
			return 0, medium.Unavailable("delete "+table, err)
		}
		n, err := affected(res)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, medium.Unavailable("commit delete "+table, err)
	}
	return total, nil
}

// Select returns the rows matching f.
func (s *Store) Select(ctx context.Context, table string, f medium.Filter) ([]medium.Row, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return nil, nil
	}

	var out []medium.Row
	for _, part := range split(f) {
		where, args := whereClause(part)
		rows, err := s.sqlDB.QueryContext(ctx,
			fmt.Sprintf(`SELECT "key", "value", "type", "timestamp", "expiry" FROM %s%s`, quote(table), where), args...)
		if err != nil {
			return nil, medium.Unavailable("select "+table, err)
		}
		out, err = scanRows(rows, out)
		if err != nil {
			return nil, medium.Unavailable("scan "+table, err)
		}
	}
	return out, nil
}

// Count returns the number of rows matching f.
func (s *Store) Count(ctx context.Context, table string, f medium.Filter) (int, error) {
	if err := medium.ValidateTableName(table); err != nil {
		return 0, err
	}
	if f.MatchesNothing() {
		return 0, nil
	}

	total := 0
	for _, part := range split(f) {
		where, args := whereClause(part)
		var n int
		err := s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, quote(table), where), args...).Scan(&n)
		if err != nil {
			return 0, medium.Unavailable("count "+table, err)
		}
		total += n
	}
	return total, nil
}

func scanRows(rows *sql.Rows, out []medium.Row) ([]medium.Row, error) {
	defer rows.Close()
	for rows.Next() {
		var (
			r     medium.Row
			value sql.NullString
			typ   sql.NullInt64
			stamp sql.NullInt64
			exp   sql.NullInt64
		)
		if err := rows.Scan(&r.Key, &value, &typ, &stamp, &exp); err != nil {
			return nil, err
		}
		r.Value = value.String
		r.Type = int(typ.Int64)
		r.Expiry = exp.Int64
		if stamp.Valid {
			v := stamp.Int64
			r.Timestamp = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// whereClause compiles a filter to a WHERE clause and its arguments.
func whereClause(f medium.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Keys != nil {
		conds = append(conds, `"key" IN (`+strings.TrimSuffix(strings.Repeat("?,", len(f.Keys)), ",")+`)`)
		for _, k := range f.Keys {
			args = append(args, k)
		}
	}
	switch f.Scope {
	case medium.NotExpired:
		conds = append(conds, `("expiry" <= 0 OR "expiry" > ?)`)
		args = append(args, f.Now)
	case medium.Expired:
		conds = append(conds, `("expiry" > 0 AND "expiry" <= ?)`)
		args = append(args, f.Now)
	case medium.SessionScoped:
		conds = append(conds, `"expiry" = 0`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// split breaks a filter with a large key set into statement-sized parts.
func split(f medium.Filter) []medium.Filter {
	if len(f.Keys) <= maxKeysPerStatement {
		return []medium.Filter{f}
	}
	var parts []medium.Filter
	for start := 0; start < len(f.Keys); start += maxKeysPerStatement {
		end := min(start+maxKeysPerStatement, len(f.Keys))
		part := f
		part.Keys = f.Keys[start:end]
		parts = append(parts, part)
	}
	return parts
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, medium.Unavailable("rows affected", err)
	}
	return n, nil
}
