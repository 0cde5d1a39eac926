package track

import (
	"context"
	"testing"
	"time"

	"github.com/cashpeek/cashpeek/dbopen"
	_ "modernc.org/sqlite"
)

func testSQLite(t *testing.T, opts ...SQLiteOption) *SQLite {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := NewSQLite(db, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	ev := Event{
		ID:      "evt-1",
		Kind:    KindBrandDetected,
		At:      time.Now().UTC(),
		URL:     "https://shop.example/p/1",
		Brand:   "nike",
		Score:   75,
		Payload: map[string]any{"signals": "price,button,title"},
	}
	if err := s.Send(ctx, ev); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, KindBrandDetected, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("events = %d", len(got))
	}
	if got[0].Brand != "nike" || got[0].Score != 75 {
		t.Errorf("event = %+v", got[0])
	}
	if got[0].Payload["signals"] != "price,button,title" {
		t.Errorf("payload = %v", got[0].Payload)
	}
}

func TestSQLiteRecentFiltersAndOrders(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, kind := range []string{KindBrandDetected, KindDismissal, KindBrandDetected} {
		ev := Event{ID: string(rune('a' + i)), Kind: kind, At: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Send(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, KindBrandDetected, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d", len(got))
	}
	if !got[0].At.After(got[1].At) {
		t.Error("not newest-first")
	}

	all, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all events = %d", len(all))
	}
}

func TestSQLitePrunesOldEvents(t *testing.T) {
	s := testSQLite(t, WithSQLiteRetention(time.Hour))
	ctx := context.Background()

	old := Event{ID: "old", Kind: KindGeneric, At: time.Now().Add(-2 * time.Hour)}
	if err := s.Send(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := Event{ID: "fresh", Kind: KindGeneric, At: time.Now()}
	if err := s.Send(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("events = %+v", got)
	}
}
