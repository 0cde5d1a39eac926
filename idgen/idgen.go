// Package idgen stamps the string identifiers written on analytics
// events and dismissal records. IDs are UUIDv7, so rows in the history
// table sort by creation time; type-scoped records carry a short tag
// prefix ("evt_").
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers. Record constructors
// take one so tests can pin IDs.
type Generator func() string

// UUIDv7 produces an RFC 9562 UUID v7 string.
func UUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Prefixed returns a Generator that tags every UUIDv7 with a fixed
// type prefix.
func Prefixed(prefix string) Generator {
	return func() string { return prefix + UUIDv7() }
}

// Default is the fallback when no Generator is injected.
var Default Generator = UUIDv7

// New produces an ID using Default.
func New() string { return Default() }

// Parse validates an ID, tolerating a type prefix, and returns its
// canonical form with the prefix preserved.
func Parse(s string) (string, error) {
	prefix, raw := "", s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		prefix, raw = s[:i+1], s[i+1:]
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return prefix + u.String(), nil
}
