package brandvote

import (
	"strings"

	"github.com/cashpeek/cashpeek/catalog"
	"github.com/cashpeek/cashpeek/textnorm"
)

// Vote tallies the gathered candidates against the catalog and returns
// the winning brand record, or nil when nothing wins.
//
// A candidate votes for a brand when its normalized form contains the
// brand name as a substring, looser than exact equality, so "Levi's
// Premium" still counts for "levis". The brand with the highest count
// wins; on a tie, catalog load order decides (the earlier brand keeps
// the win). Zero candidates or zero matches return nil, which is a
// normal outcome, not an error.
func Vote(candidates []string, cat *catalog.Catalog) *catalog.BrandRecord {
	if len(candidates) == 0 || cat.Len() == 0 {
		return nil
	}

	normalized := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if n := textnorm.Normalize(c); n != "" {
			normalized = append(normalized, n)
		}
	}

	var winner *catalog.BrandRecord
	best := 0
	for _, name := range cat.Names() {
		count := 0
		for _, c := range normalized {
			if strings.Contains(c, name) {
				count++
			}
		}
		if count > best {
			best = count
			rec, _ := cat.Lookup(name)
			winner = &rec
		}
	}
	return winner
}
