package store

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cashpeek/cashpeek/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewWithDB(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func TestPreferences_Defaults(t *testing.T) {
	s := testStore(t)
	p, err := s.Preferences(context.Background())
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if !p.Enabled || !p.AutoShow {
		t.Errorf("defaults: got %+v, want enabled+autoshow", p)
	}
	if len(p.BlacklistedDomains) != 0 {
		t.Errorf("defaults: unexpected blacklist %v", p.BlacklistedDomains)
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	want := Preferences{
		Enabled:            false,
		AutoShow:           true,
		MinConfidence:      60,
		BlacklistedDomains: []string{"bank.example.com"},
	}
	if err := s.SavePreferences(ctx, want); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	got, err := s.Preferences(ctx)
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if got.Enabled != want.Enabled || got.MinConfidence != 60 {
		t.Errorf("round trip: got %+v", got)
	}
	if len(got.BlacklistedDomains) != 1 || got.BlacklistedDomains[0] != "bank.example.com" {
		t.Errorf("blacklist: got %v", got.BlacklistedDomains)
	}
}

func TestDismissal_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if rec, err := s.Dismissal(ctx, "https://shop.example.com/p/1"); err != nil || rec != nil {
		t.Fatalf("missing record: got %v, %v", rec, err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := s.RecordDismissal(ctx, DismissalRecord{
		URL:          "https://shop.example.com/p/1",
		DismissedAt:  at,
		Brand:        "nike",
		ProductTitle: "Air Max 90",
	})
	if err != nil {
		t.Fatalf("RecordDismissal: %v", err)
	}

	rec, err := s.Dismissal(ctx, "https://shop.example.com/p/1")
	if err != nil {
		t.Fatalf("Dismissal: %v", err)
	}
	if rec == nil || !rec.DismissedAt.Equal(at) || rec.Brand != "nike" {
		t.Errorf("record: got %+v", rec)
	}

	// A different URL on the same domain is a different key.
	other, err := s.Dismissal(ctx, "https://shop.example.com/p/2")
	if err != nil || other != nil {
		t.Errorf("different URL should have no record, got %v, %v", other, err)
	}
}

func TestDismissal_Upsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	url := "https://shop.example.com/p/1"

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	s.RecordDismissal(ctx, DismissalRecord{URL: url, DismissedAt: first, Brand: "nike"})
	s.RecordDismissal(ctx, DismissalRecord{URL: url, DismissedAt: second, Brand: "adidas"})

	rec, err := s.Dismissal(ctx, url)
	if err != nil {
		t.Fatalf("Dismissal: %v", err)
	}
	if !rec.DismissedAt.Equal(second) || rec.Brand != "adidas" {
		t.Errorf("upsert should be last-write-wins, got %+v", rec)
	}
}
