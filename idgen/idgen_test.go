package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()
	if len(id) != 36 {
		t.Fatalf("expected length 36, got %d in %q", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("expected 5 groups, got %d in %q", len(parts), id)
	}
}

func TestUUIDv7Uniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := UUIDv7()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("evt_")
	id := gen()
	if !strings.HasPrefix(id, "evt_") {
		t.Fatalf("expected evt_ prefix, got %q", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("expected length 40, got %d", len(id))
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("Parse prefixed id: %v", err)
	}
}

func TestNewIsValid(t *testing.T) {
	id := New()
	parsed, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse default id: %v", err)
	}
	if parsed != id {
		t.Fatalf("Parse changed id: got %q, want %q", parsed, id)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"not-a-uuid", "evt_not-a-uuid", ""} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}
