package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

type failingTable struct {
	name  string
	calls int
}

func (f *failingTable) Name() string { return f.name }

func (f *failingTable) OnNewSession(context.Context, int64) error {
	f.calls++
	return errors.New("medium gone")
}

func (f *failingTable) PurgeExpired(context.Context) ([]string, error) {
	f.calls++
	return nil, errors.New("medium gone")
}

func TestSessionBoundary_PurgesEveryTable(t *testing.T) {
	clock := newClock()
	eng := newEngine(t, clock)
	a := openTable(t, eng, "datalayer")
	b := openTable(t, eng, "google_adid")

	seed(t, a, "session_flag", "1", domain.Expiry{})
	seed(t, a, "forever", "1", domain.Forever())
	seed(t, b, "adid", "38400000-8cf0-11bd-b23e-10b96e40000d", domain.Session())
	seed(t, b, "later", "1", domain.After(clock.Now(), time.Hour))

	sb := NewSessionBoundary(nil, a)
	sb.Bind(b)
	if err := sb.NewSession(context.Background(), 42); err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if got := keysOf(t, a); !sameStrings(got, []string{"forever"}) {
		t.Errorf("datalayer keys = %v", got)
	}
	if got := keysOf(t, b); !sameStrings(got, []string{"later"}) {
		t.Errorf("google_adid keys = %v", got)
	}
}

func TestSessionBoundary_FailureDoesNotStopOthers(t *testing.T) {
	clock := newClock()
	tbl := openTable(t, newEngine(t, clock), "datalayer")
	seed(t, tbl, "s", "1", domain.Session())

	bad := &failingTable{name: "broken"}
	err := NewSessionBoundary(nil, bad, tbl).NewSession(context.Background(), 7)
	if err == nil {
		t.Fatal("NewSession() = nil, want error from broken table")
	}
	if bad.calls != 1 {
		t.Errorf("broken table called %d times", bad.calls)
	}
	if got := keysOf(t, tbl); len(got) != 0 {
		t.Errorf("healthy table not purged: %v", got)
	}
}

func TestSessionBoundary_Run(t *testing.T) {
	clock := newClock()
	tbl := openTable(t, newEngine(t, clock), "datalayer")
	sb := NewSessionBoundary(nil, tbl)

	events := make(chan SessionEvent)
	done := make(chan struct{})
	go func() {
		sb.Run(context.Background(), events)
		close(done)
	}()

	seed(t, tbl, "first", "1", domain.Session())
	events <- SessionEvent{ID: 1}
	seed(t, tbl, "second", "1", domain.Session())
	events <- SessionEvent{ID: 2}
	close(events)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after events closed")
	}
	if got := keysOf(t, tbl); len(got) != 0 {
		t.Errorf("keys after two sessions = %v", got)
	}
}

func TestSessionTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := SessionTicker(ctx, 10*time.Millisecond)

	var last int64
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			if ev.ID < last {
				t.Errorf("ids not increasing: %d after %d", ev.ID, last)
			}
			last = ev.ID
		case <-time.After(5 * time.Second):
			t.Fatal("no session event")
		}
	}

	cancel()
	for range events {
	}
}
