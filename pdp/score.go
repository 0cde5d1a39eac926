package pdp

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/cashpeek/cashpeek/dom"
)

// actionPhrases is the fixed phrase list matched against interactive
// elements (visible text and id/class attributes).
var actionPhrases = []string{
	"add to cart",
	"add to bag",
	"add to basket",
	"add to trolley",
	"buy now",
	"buy it now",
	"order now",
	"purchase",
	"add-to-cart",
	"addtocart",
	"add-to-bag",
}

// metadataKeywords hint at a single-product spec sheet.
var metadataKeywords = []string{
	"sku", "upc", "mpn", "isbn",
	"model number", "item number", "part number", "style code",
}

// reviewKeywords mark a review section in page text.
var reviewKeywords = []string{
	"customer reviews", "product reviews", "write a review",
	"ratings", "out of 5 stars",
}

// reviewSelectors match star/rating widgets when no keyword is present.
var reviewSelectors = []string{
	"[class*=rating]", "[class*=review]", ".stars", "[itemprop=ratingValue]",
}

// imageSelectors sweep common gallery/product-photo patterns.
var imageSelectors = []string{
	"[class*=product-image] img", "[class*=product-photo] img",
	"[class*=gallery] img", "[itemprop=image]",
	"#product-image", "img#landingImage",
}

// breadcrumbSelectors match breadcrumb containers.
var breadcrumbSelectors = []string{
	"[class*=breadcrumb]", "[aria-label=breadcrumb]",
	"[itemtype*=BreadcrumbList]", "#breadcrumbs",
}

// urlPatterns are product-path shapes seen across major retailers.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/product/`),
	regexp.MustCompile(`/products/`),
	regexp.MustCompile(`/dp/`),
	regexp.MustCompile(`/gp/product/`),
	regexp.MustCompile(`/itm/`),
	regexp.MustCompile(`/item/`),
	regexp.MustCompile(`/p/`),
	regexp.MustCompile(`/pd/`),
	regexp.MustCompile(`-p\d+`),
	regexp.MustCompile(`/sku/`),
}

const maxImages = 5

// Score evaluates every detector against the snapshot and returns the
// signal set with its additive confidence score.
func Score(d *dom.Document) (Signals, int) {
	var s Signals

	bodyText := d.BodyText()
	lowerBody := strings.ToLower(bodyText)

	s.Price, s.Currency = detectPrice(d, bodyText)
	s.HasPrice = s.Price != ""

	s.HasActionButton = detectActionButton(d, lowerBody)

	s.Title = ExtractTitle(d)
	s.HasProductTitle = s.Title != ""

	s.Images = detectImages(d)
	s.HasProductImage = len(s.Images) > 0

	s.HasMetadata = containsAny(lowerBody, metadataKeywords)

	s.HasReviews = containsAny(lowerBody, reviewKeywords) ||
		len(d.QueryAll(reviewSelectors...)) > 0

	s.HasStructuredData = detectProductJSONLD(d)

	if u := d.URL(); u != nil {
		for _, re := range urlPatterns {
			if re.MatchString(u.Path) {
				s.HasURLPattern = true
				break
			}
		}
	}

	s.HasBreadcrumb = detectBreadcrumb(d)

	return s, s.Score()
}

// ExtractTitle returns the best-effort product title: first non-empty of
// <h1> text, og:title, document title.
func ExtractTitle(d *dom.Document) string {
	for _, h1 := range dom.FindAllByTag(d.Root(), atom.H1) {
		if t := dom.Text(h1); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(d.Meta("og:title")); t != "" {
		return t
	}
	return d.Title()
}

// detectActionButton scans interactive elements' visible text and
// id/class attributes for an action phrase, falling back to a page-text
// scan when no interactive element matches.
func detectActionButton(d *dom.Document, lowerBody string) bool {
	interactive := d.QueryAll("button", "a", "input", "[role=button]")
	for _, n := range interactive {
		hay := strings.ToLower(dom.Text(n) + " " + dom.Attr(n, "id") + " " +
			dom.Attr(n, "class") + " " + dom.Attr(n, "value"))
		if containsAny(hay, actionPhrases) {
			return true
		}
	}
	return containsAny(lowerBody, actionPhrases)
}

// detectImages sweeps the gallery selectors plus og:image, deduplicated
// and capped at maxImages URLs.
func detectImages(d *dom.Document) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		if len(urls) < maxImages {
			urls = append(urls, u)
		}
	}

	if og := d.Meta("og:image"); og != "" {
		add(og)
	}
	for _, n := range d.QueryAll(imageSelectors...) {
		if src := dom.Attr(n, "src"); src != "" {
			add(src)
		} else if src := dom.Attr(n, "data-src"); src != "" {
			add(src)
		}
	}
	return urls
}

// detectProductJSONLD reports whether any ld+json block declares
// @type Product, either at top level or inside a @graph array.
func detectProductJSONLD(d *dom.Document) bool {
	for _, block := range d.JSONLD() {
		var doc any
		if err := json.Unmarshal([]byte(block), &doc); err != nil {
			continue // malformed JSON-LD is signal-absent, not an error
		}
		if isProductNode(doc) {
			return true
		}
		if obj, ok := doc.(map[string]any); ok {
			if graph, ok := obj["@graph"].([]any); ok {
				for _, node := range graph {
					if isProductNode(node) {
						return true
					}
				}
			}
		}
		if arr, ok := doc.([]any); ok {
			for _, node := range arr {
				if isProductNode(node) {
					return true
				}
			}
		}
	}
	return false
}

func isProductNode(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

// detectBreadcrumb requires both a breadcrumb-shaped container and a
// separator glyph inside it, so a bare "breadcrumb" class on an empty
// nav does not count.
func detectBreadcrumb(d *dom.Document) bool {
	for _, n := range d.QueryAll(breadcrumbSelectors...) {
		text := dom.Text(n)
		if strings.ContainsAny(text, ">/›") {
			return true
		}
	}
	return false
}

// BreadcrumbTrail returns the crumb texts of the first breadcrumb
// container found, split on separator glyphs. Empty when the page has no
// breadcrumb. The brand voting engine reads the second-to-last crumb.
func BreadcrumbTrail(d *dom.Document) []string {
	for _, n := range d.QueryAll(breadcrumbSelectors...) {
		text := dom.Text(n)
		if !strings.ContainsAny(text, ">/›") {
			continue
		}
		parts := strings.FieldsFunc(text, func(r rune) bool {
			return r == '>' || r == '/' || r == '›'
		})
		var crumbs []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				crumbs = append(crumbs, p)
			}
		}
		if len(crumbs) > 0 {
			return crumbs
		}
	}
	return nil
}

func containsAny(hay string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(hay, n) {
			return true
		}
	}
	return false
}
