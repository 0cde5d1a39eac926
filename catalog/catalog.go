// Package catalog holds the curated list of supported brands. It is
// loaded once per page context, read-only afterwards, and gives O(1)
// lookup by normalized name plus a stable iteration order for voting
// tie-breaks.
package catalog

import (
	"context"
	"log/slog"

	"github.com/cashpeek/cashpeek/textnorm"
)

// BrandRecord is one supported brand. Name is stored normalized
// (lowercase, trademark glyphs and apostrophes stripped).
type BrandRecord struct {
	Name            string `json:"name" yaml:"name"`
	CashbackPercent int    `json:"cashback_percent" yaml:"cashback_percent"`
}

// Catalog maps normalized brand names to records. Immutable once built.
type Catalog struct {
	records map[string]BrandRecord
	order   []string
}

// Source provides brand records. Implementations: Static, File, HTTP CSV.
type Source interface {
	Brands(ctx context.Context) ([]BrandRecord, error)
}

// Load builds a Catalog from a source. A failing or malformed source
// degrades to an empty catalog — "no brand ever matches" is a valid,
// non-fatal outcome for the whole pipeline.
func Load(ctx context.Context, src Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Catalog{records: make(map[string]BrandRecord)}

	if src == nil {
		return c
	}

	brands, err := src.Brands(ctx)
	if err != nil {
		logger.Warn("catalog: source failed, continuing with empty catalog", "error", err)
		return c
	}

	for _, b := range brands {
		name := textnorm.Normalize(b.Name)
		if name == "" {
			continue
		}
		// Last-write-wins on duplicates; keep the first position in
		// the iteration order.
		if _, seen := c.records[name]; !seen {
			c.order = append(c.order, name)
		}
		c.records[name] = BrandRecord{Name: name, CashbackPercent: b.CashbackPercent}
	}

	logger.Info("catalog: loaded", "brands", len(c.order))
	return c
}

// Lookup returns the record for a normalized name.
func (c *Catalog) Lookup(name string) (BrandRecord, bool) {
	r, ok := c.records[name]
	return r, ok
}

// Names returns the normalized brand names in load order. Callers must
// not mutate the returned slice.
func (c *Catalog) Names() []string {
	return c.order
}

// Len returns the number of distinct brands.
func (c *Catalog) Len() int {
	return len(c.order)
}
