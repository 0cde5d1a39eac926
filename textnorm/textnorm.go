// Package textnorm provides the string normalization used for every
// brand-name comparison in cashpeek. All candidates and catalog entries
// pass through Normalize before they are compared, so "Levi's®" and
// "LEVIS" collapse to the same form.
package textnorm

import "strings"

// glyphReplacer strips trademark glyphs and apostrophe variants.
// Apostrophes are folded away (not replaced by a space) so that
// "levi's" normalizes to "levis" — the substring voting in brandvote
// relies on this.
var glyphReplacer = strings.NewReplacer(
	"®", "",
	"™", "",
	"©", "",
	"'", "",
	"’", "",
	"ʼ", "",
)

// Normalize lower-cases s, strips trademark/registered/copyright glyphs
// and apostrophes, and trims surrounding whitespace. It is total (empty
// in, empty out) and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = glyphReplacer.Replace(s)
	return strings.TrimSpace(s)
}

// CollapseSpaces additionally folds runs of whitespace to single spaces.
// Candidate strings pulled from DOM text often carry the document's
// original formatting.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
