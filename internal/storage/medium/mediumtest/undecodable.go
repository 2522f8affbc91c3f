package mediumtest

import (
	"context"
	"testing"

	"github.com/yndnr/datalayer-go/internal/storage/medium"
)

// Corrupt writes an undecodable payload for key straight into the
// backend, bypassing the medium.
type Corrupt func(t *testing.T, m medium.Medium, table, key string)

// RunUndecodable checks how a medium treats rows it cannot decode. Only
// media that store encoded payloads run it.
func RunUndecodable(t *testing.T, open Factory, corrupt Corrupt) {
	t.Helper()

	setup := func(t *testing.T) medium.Medium {
		m := open(t)
		t.Cleanup(func() { _ = m.Close() })
		if err := m.EnsureTable(context.Background(), "datalayer"); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
		mustReplace(t, m, "datalayer", medium.Row{Key: "good", Value: "v", Expiry: -1})
		corrupt(t, m, "datalayer", "bad")
		return m
	}

	t.Run("CountAgreesWithSelect", func(t *testing.T) {
		m := setup(t)
		keys := selectKeys(t, m, "datalayer", medium.All())
		if !equalKeys(keys, []string{"good"}) {
			t.Fatalf("Select = %v, want [good]", keys)
		}
		n, err := m.Count(context.Background(), "datalayer", medium.All())
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != len(keys) {
			t.Errorf("Count = %d, Select returned %d rows", n, len(keys))
		}
	})

	t.Run("DeleteAllDropsUndecodable", func(t *testing.T) {
		m := setup(t)
		ctx := context.Background()
		n, err := m.Delete(ctx, "datalayer", medium.All())
		if err != nil {
			t.Fatalf("Delete all: %v", err)
		}
		if n != 2 {
			t.Errorf("Delete all removed %d rows, want 2", n)
		}
		// A fresh write under the corrupt key must be readable.
		mustReplace(t, m, "datalayer", medium.Row{Key: "bad", Value: "ok", Expiry: -1})
		if keys := selectKeys(t, m, "datalayer", medium.All()); !equalKeys(keys, []string{"bad"}) {
			t.Errorf("Select after delete all = %v, want [bad]", keys)
		}
	})
}
