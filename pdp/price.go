package pdp

import (
	"regexp"
	"strings"

	"github.com/cashpeek/cashpeek/dom"
)

// pricePatterns cover the common currency notations found in page body
// text. Symbol-prefixed first (most specific), then code-suffixed.
var pricePatterns = []struct {
	re       *regexp.Regexp
	currency string
}{
	{regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`), "USD"},
	{regexp.MustCompile(`€\s?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?`), "EUR"},
	{regexp.MustCompile(`£\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`), "GBP"},
	{regexp.MustCompile(`¥\s?\d{1,3}(?:,\d{3})*`), "JPY"},
	{regexp.MustCompile(`(?i)\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?\s?(USD|EUR|GBP|CAD|AUD)\b`), ""},
}

// priceMetaKeys are checked, in order, when no price is found in the
// body text.
var priceMetaKeys = []string{"product:price:amount", "og:price:amount", "price"}

// detectPrice scans body text for a currency pattern, then falls back to
// price meta tags. Returns the matched price string and currency ("" for
// both when nothing is found).
func detectPrice(d *dom.Document, bodyText string) (price, currency string) {
	for _, p := range pricePatterns {
		if m := p.re.FindString(bodyText); m != "" {
			cur := p.currency
			if cur == "" {
				fields := strings.Fields(m)
				cur = strings.ToUpper(fields[len(fields)-1])
			}
			return strings.TrimSpace(m), cur
		}
	}

	for _, key := range priceMetaKeys {
		if v := d.Meta(key); v != "" {
			return v, strings.ToUpper(d.Meta("product:price:currency"))
		}
	}

	// itemprop=price is often on a non-meta element.
	for _, n := range d.QuerySelectorAll("[itemprop=price]") {
		if v := dom.Attr(n, "content"); v != "" {
			return v, ""
		}
		if v := dom.Text(n); v != "" {
			return v, ""
		}
	}

	return "", ""
}
