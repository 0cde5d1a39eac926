// Package brandvote identifies which curated brand a page is selling.
//
// Candidate gathering runs several independent strategies over one DOM
// snapshot. Each strategy appends raw strings to a single flat list —
// duplicates across strategies are expected and meaningful, because the
// vote counts occurrences as evidence. No strategy is trusted on its
// own; the plurality across all of them decides.
package brandvote

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/cashpeek/cashpeek/dom"
	"github.com/cashpeek/cashpeek/pdp"
)

// genericCrumbs are breadcrumb items that never name a brand.
var genericCrumbs = map[string]struct{}{
	"home": {}, "shop": {}, "products": {}, "all products": {},
	"categories": {}, "sale": {}, "new": {},
}

// brandAttrSelectors sweep microdata and conventional brand markup.
var brandAttrSelectors = []string{
	"[itemprop=brand]", "[data-product-brand]", ".product-brand", "[class*=brand-name]",
}

// CollectCandidates gathers raw brand-name candidates from the snapshot.
// catalogNames drives the title-matching strategy; every other strategy
// is catalog-independent. Order of the result is not meaningful, only
// multiplicity.
func CollectCandidates(d *dom.Document, catalogNames []string) []string {
	var out []string

	out = append(out, jsonLDBrands(d)...)
	out = append(out, titleMatches(d, catalogNames)...)

	for _, key := range []string{"og:brand", "product:brand"} {
		if v := d.Meta(key); v != "" {
			out = append(out, v)
		}
	}

	out = append(out, attributeBrands(d)...)
	out = append(out, labeledBrands(d)...)

	if crumb := breadcrumbBrand(d); crumb != "" {
		out = append(out, crumb)
	}

	if site := d.Meta("og:site_name"); site != "" {
		out = append(out, site)
	}

	if dom := domainBrand(d); dom != "" {
		out = append(out, dom)
	}

	return out
}

// jsonLDBrands reads brand.name (or a bare brand string) from every
// ld+json block, including nodes inside @graph.
func jsonLDBrands(d *dom.Document) []string {
	var brands []string

	var fromNode func(v any)
	fromNode = func(v any) {
		obj, ok := v.(map[string]any)
		if !ok {
			return
		}
		switch b := obj["brand"].(type) {
		case string:
			brands = append(brands, b)
		case map[string]any:
			if name, ok := b["name"].(string); ok {
				brands = append(brands, name)
			}
		}
		if graph, ok := obj["@graph"].([]any); ok {
			for _, node := range graph {
				fromNode(node)
			}
		}
	}

	for _, block := range d.JSONLD() {
		var doc any
		if err := json.Unmarshal([]byte(block), &doc); err != nil {
			continue
		}
		if arr, ok := doc.([]any); ok {
			for _, node := range arr {
				fromNode(node)
			}
			continue
		}
		fromNode(doc)
	}
	return brands
}

// titleMatches matches each catalog brand name against the extracted
// page title, word-boundary anchored so "levis" cannot match inside
// "levinson". The regex tolerates an optional apostrophe between the
// letters of the name, so the catalog form "levis" still finds "Levi's".
// The captured candidate is the original-cased substring from the title.
func titleMatches(d *dom.Document, catalogNames []string) []string {
	title := pdp.ExtractTitle(d)
	if title == "" {
		return nil
	}

	var out []string
	for _, name := range catalogNames {
		re, err := titlePattern(name)
		if err != nil {
			continue
		}
		if m := re.FindString(title); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// titlePattern compiles the apostrophe-tolerant, case-insensitive,
// word-boundary-anchored pattern for one normalized brand name.
func titlePattern(name string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString(`(?i)\b`)
	for i, r := range name {
		if r == ' ' {
			sb.WriteString(`\s+`)
			continue
		}
		if i > 0 {
			sb.WriteString(`['` + "’" + `]?`)
		}
		sb.WriteString(regexp.QuoteMeta(string(r)))
	}
	sb.WriteString(`\b`)
	return regexp.Compile(sb.String())
}

// attributeBrands sweeps microdata/CSS brand markup. For meta-like
// elements the content attribute wins over element text.
func attributeBrands(d *dom.Document) []string {
	var out []string
	for _, n := range d.QueryAll(brandAttrSelectors...) {
		if v := dom.Attr(n, "content"); v != "" {
			out = append(out, v)
			continue
		}
		if v := dom.Attr(n, "data-product-brand"); v != "" {
			out = append(out, v)
			continue
		}
		if t := dom.Text(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// labeledBrands finds short label elements whose text starts with
// "brand" and reads the paired value: either the remainder after a colon
// in the same element, or the next sibling element's text.
func labeledBrands(d *dom.Document) []string {
	var out []string
	for _, n := range d.QueryAll("span", "dt", "th", "td", "b", "strong", "label", "div") {
		text := strings.TrimSpace(dom.Text(n))
		lower := strings.ToLower(text)
		if !strings.HasPrefix(lower, "brand") || len(text) > 40 {
			continue
		}

		// "Brand: Nike" in one element.
		if idx := strings.IndexByte(text, ':'); idx >= 0 {
			if v := strings.TrimSpace(text[idx+1:]); v != "" {
				out = append(out, v)
				continue
			}
		}

		// Bare "Brand" label: the value is the next element sibling.
		if len(lower) <= len("brand")+1 {
			if sib := nextElementSibling(n); sib != nil {
				if v := strings.TrimSpace(dom.Text(sib)); v != "" {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// breadcrumbBrand returns the second-to-last breadcrumb item unless it
// is an obviously generic crumb.
func breadcrumbBrand(d *dom.Document) string {
	trail := pdp.BreadcrumbTrail(d)
	if len(trail) < 2 {
		return ""
	}
	crumb := trail[len(trail)-2]
	if _, generic := genericCrumbs[strings.ToLower(crumb)]; generic {
		return ""
	}
	return crumb
}

// domainBrand strips the subdomain and TLD from the hostname, taking the
// label immediately before the last dot-segment. Known to be naive for
// multi-part TLDs like .co.uk.
func domainBrand(d *dom.Document) string {
	u := d.URL()
	if u == nil {
		return ""
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) < 2 {
		return ""
	}
	return labels[len(labels)-2]
}
