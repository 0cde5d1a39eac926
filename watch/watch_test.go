package watch_test

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cashpeek/cashpeek/dbopen"
	"github.com/cashpeek/cashpeek/watch"
	_ "modernc.org/sqlite"
)

// stepDetector returns whatever value the test last stored.
func stepDetector(v *atomic.Int64) watch.Detector {
	return func(context.Context, *sql.DB) (int64, error) {
		return v.Load(), nil
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestFiresOnVersionChange(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var ver atomic.Int64
	var fired atomic.Int64
	w := watch.New(db, watch.Options{
		Interval: 10 * time.Millisecond,
		Detector: stepDetector(&ver),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("fired %d times with no change", fired.Load())
	}

	ver.Store(1)
	waitUntil(t, time.Second, func() bool { return fired.Load() == 1 })
	if w.Version() != 1 {
		t.Fatalf("Version() = %d, want 1", w.Version())
	}
}

func TestDebounceAbsorbsBursts(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var ver atomic.Int64
	var fired atomic.Int64
	w := watch.New(db, watch.Options{
		Interval: 10 * time.Millisecond,
		Debounce: 60 * time.Millisecond,
		Detector: stepDetector(&ver),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	// Three quick writes inside one debounce window.
	for i := int64(1); i <= 3; i++ {
		ver.Store(i)
		time.Sleep(15 * time.Millisecond)
	}

	waitUntil(t, time.Second, func() bool { return fired.Load() >= 1 })
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}

func TestActionErrorRetries(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var ver atomic.Int64
	var calls atomic.Int64
	w := watch.New(db, watch.Options{
		Interval: 10 * time.Millisecond,
		Detector: stepDetector(&ver),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return errors.New("busy")
		}
		return nil
	})

	ver.Store(7)
	waitUntil(t, time.Second, func() bool { return w.Version() == 7 })
	if calls.Load() < 2 {
		t.Fatalf("action ran %d times, want a retry after the error", calls.Load())
	}
}

func TestDataVersionMovesOnOtherConnectionWrite(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/watch.db"

	db, err := dbopen.Open(path, dbopen.WithSchema(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	before, err := watch.DataVersion(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}

	other, err := dbopen.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if _, err := other.Exec(`INSERT INTO kv (k, v) VALUES ('a', 'b')`); err != nil {
		t.Fatal(err)
	}

	after, err := watch.DataVersion(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Fatal("data_version did not move after cross-connection write")
	}
}
