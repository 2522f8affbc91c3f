package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
)

func newBackups(t *testing.T, enc snapshot.EncryptionConfig) *Backups {
	t.Helper()
	m, err := snapshot.NewManager(snapshot.Config{Dir: t.TempDir(), Encryption: enc}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewBackups(m, nil)
}

func TestBackups_BackupRestore(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	eng := newEngine(t, clock)
	src := openTable(t, eng, "datalayer")
	seed(t, src, "google_adid", "38400000-8cf0-11bd-b23e-10b96e40000d", domain.Forever())
	seed(t, src, "session_flag", true, domain.Session())
	seed(t, src, "stale", "x", domain.After(clock.Now(), time.Second))
	clock.Advance(2 * time.Second)

	b := newBackups(t, snapshot.EncryptionConfig{Passphrase: []byte("correct horse")})
	info, err := b.Backup(ctx, src)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if info.RecordCount != 2 || !info.Encrypted {
		t.Errorf("info = %+v", info)
	}

	dst := openTable(t, eng, "restored")
	seed(t, dst, "leftover", "1", domain.Forever())

	n, err := b.Restore(ctx, dst, info.ID, false)
	if err != nil || n != 2 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	if got := keysOf(t, dst); !sameStrings(got, []string{"google_adid", "leftover", "session_flag"}) {
		t.Errorf("merge restore keys = %v", got)
	}

	if _, err := b.Restore(ctx, dst, info.ID, true); err != nil {
		t.Fatal(err)
	}
	if got := keysOf(t, dst); !sameStrings(got, []string{"google_adid", "session_flag"}) {
		t.Errorf("replace restore keys = %v", got)
	}

	rec, ok, err := dst.Get(ctx, "session_flag")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !rec.Expiry.IsSession() || rec.Serialization != domain.SerializationBoolean {
		t.Errorf("restored record = %+v", rec)
	}
}

func TestBackups_RestoreKeepsLastUpdated(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	eng := newEngine(t, clock)
	tbl := openTable(t, eng, "datalayer")
	seed(t, tbl, "a", "1", domain.Forever())
	before, _, err := tbl.Get(ctx, "a")
	if err != nil || before.LastUpdated == nil {
		t.Fatalf("Get = %+v, %v", before, err)
	}

	b := newBackups(t, snapshot.EncryptionConfig{})
	if _, err := b.Backup(ctx, tbl); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	if _, err := b.Restore(ctx, tbl, "", true); err != nil {
		t.Fatal(err)
	}

	after, ok, err := tbl.Get(ctx, "a")
	if err != nil || !ok || after.LastUpdated == nil {
		t.Fatalf("Get after restore = %+v, %v, %v", after, ok, err)
	}
	if *after.LastUpdated != *before.LastUpdated {
		t.Errorf("LastUpdated = %d, want snapshot stamp %d", *after.LastUpdated, *before.LastUpdated)
	}
}

func TestBackups_RestoreLatest(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, newClock())
	tbl := openTable(t, eng, "datalayer")
	b := newBackups(t, snapshot.EncryptionConfig{})

	if _, err := b.Restore(ctx, tbl, "", false); !errors.Is(err, snapshot.ErrNoSnapshots) {
		t.Fatalf("Restore without snapshots = %v", err)
	}

	seed(t, tbl, "a", "1", domain.Forever())
	if _, err := b.Backup(ctx, tbl); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := b.Restore(ctx, tbl, "", true)
	if err != nil || n != 1 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	if got := keysOf(t, tbl); !sameStrings(got, []string{"a"}) {
		t.Errorf("keys = %v", got)
	}

	infos, err := b.List()
	if err != nil || len(infos) != 1 {
		t.Errorf("List = %v, %v", infos, err)
	}
	if _, err := b.Restore(ctx, tbl, "snapshot-missing", false); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Restore(missing) = %v", err)
	}
}

func TestBackups_Run(t *testing.T) {
	eng := newEngine(t, newClock())
	tbl := openTable(t, eng, "datalayer")
	seed(t, tbl, "a", "1", domain.Forever())
	b := newBackups(t, snapshot.EncryptionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, 10*time.Millisecond, tbl)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		infos, err := b.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(infos) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic backup never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
