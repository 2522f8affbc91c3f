package medium

import (
	"context"
	"regexp"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// Medium is the durable store behind one or more tables.
//
// Implementations must be safe for concurrent use; the storage engine
// serializes writes per table but different tables share one Medium.
// Errors returned by a Medium are wrapped in domain.ErrStorageUnavailable.
type Medium interface {
	// EnsureTable creates the table if it does not exist.
	EnsureTable(ctx context.Context, table string) error

	// Replace inserts row, replacing any row with the same key.
	// Returns the number of rows written.
	Replace(ctx context.Context, table string, row Row) (int64, error)

	// Update rewrites the row matching row.Key. Returns 0 when no row
	// matched.
	Update(ctx context.Context, table string, row Row) (int64, error)

	// Delete removes the rows matching f and returns how many were removed.
	Delete(ctx context.Context, table string, f Filter) (int64, error)

	// Select returns the rows matching f in unspecified order.
	Select(ctx context.Context, table string, f Filter) ([]Row, error)

	// Count returns the number of rows matching f.
	Count(ctx context.Context, table string, f Filter) (int, error)

	// Close releases the medium.
	Close() error
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateTableName checks name is a safe identifier. Table names are
// interpolated into SQL statements and key prefixes.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return domain.ErrInvalidTableName.WithDetails(name)
	}
	return nil
}

// Unavailable wraps a backend failure as domain.ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	return domain.ErrStorageUnavailable.WithDetails(op).WithCause(err)
}
