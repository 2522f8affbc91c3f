// Package mediumtest holds the conformance suite every medium.Medium
// implementation runs from its own package tests.
package mediumtest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// Factory opens a fresh, empty medium. The suite closes it.
type Factory func(t *testing.T) medium.Medium

const now int64 = 1_700_000_000_000

func ts(v int64) *int64 { return &v }

// Run executes the conformance suite against media produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, m medium.Medium)
	}{
		{"ReplaceAndSelect", testReplaceAndSelect},
		{"ReplaceOverwrites", testReplaceOverwrites},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateExisting", testUpdateExisting},
		{"ExpiryScopes", testExpiryScopes},
		{"DeleteByKeys", testDeleteByKeys},
		{"DeleteByScope", testDeleteByScope},
		{"EmptyKeySet", testEmptyKeySet},
		{"TablesIsolated", testTablesIsolated},
		{"InvalidTableName", testInvalidTableName},
		{"EnsureTableIdempotent", testEnsureTableIdempotent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := open(t)
			t.Cleanup(func() { _ = m.Close() })
			ctx := context.Background()
			if err := m.EnsureTable(ctx, "datalayer"); err != nil {
				t.Fatalf("EnsureTable: %v", err)
			}
			tc.fn(t, m)
		})
	}
}

func mustReplace(t *testing.T, m medium.Medium, table string, rows ...medium.Row) {
	t.Helper()
	for _, r := range rows {
		n, err := m.Replace(context.Background(), table, r)
		if err != nil {
			t.Fatalf("Replace(%q): %v", r.Key, err)
		}
		if n != 1 {
			t.Fatalf("Replace(%q) affected %d rows, want 1", r.Key, n)
		}
	}
}

func selectKeys(t *testing.T, m medium.Medium, table string, f medium.Filter) []string {
	t.Helper()
	rows, err := m.Select(context.Background(), table, f)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	sort.Strings(keys)
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testReplaceAndSelect(t *testing.T, m medium.Medium) {
	want := medium.Row{Key: "k", Value: "v", Type: 3, Timestamp: ts(now), Expiry: -1}
	mustReplace(t, m, "datalayer", want)

	rows, err := m.Select(context.Background(), "datalayer", medium.ByKey("k"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Select returned %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.Key != want.Key || got.Value != want.Value || got.Type != want.Type || got.Expiry != want.Expiry {
		t.Errorf("row = %+v, want %+v", got, want)
	}
	if got.Timestamp == nil || *got.Timestamp != now {
		t.Errorf("timestamp = %v, want %d", got.Timestamp, now)
	}

	mustReplace(t, m, "datalayer", medium.Row{Key: "nots", Value: "x", Expiry: 0})
	rows, err = m.Select(context.Background(), "datalayer", medium.ByKey("nots"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].Timestamp != nil {
		t.Errorf("nil timestamp not preserved: %+v", rows)
	}
}

func testReplaceOverwrites(t *testing.T, m medium.Medium) {
	mustReplace(t, m, "datalayer",
		medium.Row{Key: "k", Value: "one", Expiry: 0},
		medium.Row{Key: "k", Value: "two", Expiry: -1},
	)

	n, err := m.Count(context.Background(), "datalayer", medium.All())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	rows, _ := m.Select(context.Background(), "datalayer", medium.ByKey("k"))
	if len(rows) != 1 || rows[0].Value != "two" || rows[0].Expiry != -1 {
		t.Errorf("rows = %+v, want single overwritten row", rows)
	}
}

func testUpdateMissing(t *testing.T, m medium.Medium) {
	n, err := m.Update(context.Background(), "datalayer", medium.Row{Key: "ghost", Value: "v"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 0 {
		t.Errorf("Update of missing row affected %d rows, want 0", n)
	}
	if c, _ := m.Count(context.Background(), "datalayer", medium.All()); c != 0 {
		t.Errorf("Update of missing row created a row")
	}
}

func testUpdateExisting(t *testing.T, m medium.Medium) {
	mustReplace(t, m, "datalayer", medium.Row{Key: "k", Value: "old", Expiry: 0})
	n, err := m.Update(context.Background(), "datalayer", medium.Row{Key: "k", Value: "new", Type: 1, Expiry: now + 1000})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 1 {
		t.Fatalf("Update affected %d rows, want 1", n)
	}
	rows, _ := m.Select(context.Background(), "datalayer", medium.ByKey("k"))
	if len(rows) != 1 || rows[0].Value != "new" || rows[0].Type != 1 || rows[0].Expiry != now+1000 {
		t.Errorf("rows = %+v", rows)
	}
}

func seedScopes(t *testing.T, m medium.Medium) {
	mustReplace(t, m, "datalayer",
		medium.Row{Key: "forever", Value: "f", Expiry: -1},
		medium.Row{Key: "session", Value: "s", Expiry: 0},
		medium.Row{Key: "future", Value: "u", Expiry: now + 60_000},
		medium.Row{Key: "past", Value: "p", Expiry: now - 60_000},
		medium.Row{Key: "boundary", Value: "b", Expiry: now},
	)
}

func testExpiryScopes(t *testing.T, m medium.Medium) {
	seedScopes(t, m)

	tests := []struct {
		scope medium.ExpiryScope
		want  []string
	}{
		{medium.AnyExpiry, []string{"boundary", "forever", "future", "past", "session"}},
		{medium.NotExpired, []string{"forever", "future", "session"}},
		{medium.Expired, []string{"boundary", "past"}},
		{medium.SessionScoped, []string{"session"}},
	}
	for _, tt := range tests {
		f := medium.Filter{Scope: tt.scope, Now: now}
		got := selectKeys(t, m, "datalayer", f)
		if !equalKeys(got, tt.want) {
			t.Errorf("Select(%s) = %v, want %v", tt.scope, got, tt.want)
		}
		n, err := m.Count(context.Background(), "datalayer", f)
		if err != nil {
			t.Fatalf("Count(%s): %v", tt.scope, err)
		}
		if n != len(tt.want) {
			t.Errorf("Count(%s) = %d, want %d", tt.scope, n, len(tt.want))
		}
	}

	got := selectKeys(t, m, "datalayer", medium.Filter{Keys: []string{"past", "forever", "absent"}, Scope: medium.NotExpired, Now: now})
	if !equalKeys(got, []string{"forever"}) {
		t.Errorf("keys+scope = %v, want [forever]", got)
	}
}

func testDeleteByKeys(t *testing.T, m medium.Medium) {
	seedScopes(t, m)
	ctx := context.Background()

	n, err := m.Delete(ctx, "datalayer", medium.Filter{Keys: []string{"forever", "past", "absent"}})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 2 {
		t.Errorf("Delete removed %d rows, want 2", n)
	}
	n, err = m.Delete(ctx, "datalayer", medium.ByKey("absent"))
	if err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if n != 0 {
		t.Errorf("Delete absent removed %d rows, want 0", n)
	}
	got := selectKeys(t, m, "datalayer", medium.All())
	if !equalKeys(got, []string{"boundary", "future", "session"}) {
		t.Errorf("remaining = %v", got)
	}
}

func testDeleteByScope(t *testing.T, m medium.Medium) {
	seedScopes(t, m)
	ctx := context.Background()

	n, err := m.Delete(ctx, "datalayer", medium.Filter{Scope: medium.SessionScoped})
	if err != nil {
		t.Fatalf("Delete session: %v", err)
	}
	if n != 1 {
		t.Errorf("session delete removed %d rows, want 1", n)
	}
	n, err = m.Delete(ctx, "datalayer", medium.Filter{Scope: medium.Expired, Now: now})
	if err != nil {
		t.Fatalf("Delete expired: %v", err)
	}
	if n != 2 {
		t.Errorf("expired delete removed %d rows, want 2", n)
	}
	n, err = m.Delete(ctx, "datalayer", medium.All())
	if err != nil {
		t.Fatalf("Delete all: %v", err)
	}
	if n != 2 {
		t.Errorf("delete all removed %d rows, want 2", n)
	}
	if c, _ := m.Count(ctx, "datalayer", medium.All()); c != 0 {
		t.Errorf("Count after delete all = %d", c)
	}
}

func testEmptyKeySet(t *testing.T, m medium.Medium) {
	seedScopes(t, m)
	ctx := context.Background()
	empty := medium.Filter{Keys: []string{}}

	if n, err := m.Delete(ctx, "datalayer", empty); err != nil || n != 0 {
		t.Errorf("Delete(empty) = %d, %v", n, err)
	}
	if rows, err := m.Select(ctx, "datalayer", empty); err != nil || len(rows) != 0 {
		t.Errorf("Select(empty) = %v, %v", rows, err)
	}
	if n, err := m.Count(ctx, "datalayer", empty); err != nil || n != 0 {
		t.Errorf("Count(empty) = %d, %v", n, err)
	}
}

func testTablesIsolated(t *testing.T, m medium.Medium) {
	ctx := context.Background()
	if err := m.EnsureTable(ctx, "other"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	mustReplace(t, m, "datalayer", medium.Row{Key: "shared", Value: "a", Expiry: 0})
	mustReplace(t, m, "other", medium.Row{Key: "shared", Value: "b", Expiry: -1})

	if _, err := m.Delete(ctx, "datalayer", medium.All()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err := m.Select(ctx, "other", medium.All())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != "b" {
		t.Errorf("other table = %+v, want untouched row", rows)
	}
}

func testInvalidTableName(t *testing.T, m medium.Medium) {
	err := m.EnsureTable(context.Background(), "bad name; drop")
	if !errors.Is(err, domain.ErrInvalidTableName) {
		t.Errorf("EnsureTable(bad) = %v, want ErrInvalidTableName", err)
	}
}

func testEnsureTableIdempotent(t *testing.T, m medium.Medium) {
	mustReplace(t, m, "datalayer", medium.Row{Key: "k", Value: "v", Expiry: -1})
	if err := m.EnsureTable(context.Background(), "datalayer"); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}
	if n, _ := m.Count(context.Background(), "datalayer", medium.All()); n != 1 {
		t.Errorf("EnsureTable dropped rows: count = %d", n)
	}
}
