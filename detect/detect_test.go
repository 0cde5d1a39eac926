package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/cashpeek/cashpeek/catalog"
	"github.com/cashpeek/cashpeek/dom"
)

// pdpFixture scores well above the default threshold: price, action
// button, title, structured data.
const pdpFixture = `<html><head>
<title>Nike Air Max 90</title>
<script type="application/ld+json">{"@type":"Product","name":"Air Max 90","brand":{"name":"Nike"}}</script>
</head><body>
<h1>Nike Air Max 90</h1>
<span class="price">$129.99</span>
<button>Add to Cart</button>
</body></html>`

// thinFixture has a brand mention but nothing product-shaped.
const thinFixture = `<html><head><title>Nike History - Blog</title></head>
<body><p>The story of Nike began in 1964.</p></body></html>`

func orch(t *testing.T, brands ...catalog.BrandRecord) *Orchestrator {
	t.Helper()
	c := catalog.Load(context.Background(), catalog.Static(brands), nil)
	return New(Config{Catalog: c})
}

func parse(t *testing.T, raw, url string) *dom.Document {
	t.Helper()
	d, err := dom.Parse([]byte(raw), url)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return d
}

func TestDetect_Qualifies(t *testing.T) {
	o := orch(t, catalog.BrandRecord{Name: "nike", CashbackPercent: 5})
	v := o.Detect(parse(t, pdpFixture, "https://shop.example.com/product/air-max-90"))

	if !v.IsQualifyingPage {
		t.Fatalf("expected qualifying verdict, got %+v", v)
	}
	if v.WinningBrand == nil || v.WinningBrand.Name != "nike" {
		t.Errorf("winning brand: got %+v", v.WinningBrand)
	}
	if v.PageTitle != "Nike Air Max 90" {
		t.Errorf("page title: got %q", v.PageTitle)
	}
	if v.ConfidenceScore < 50 {
		t.Errorf("confidence: got %d", v.ConfidenceScore)
	}
}

func TestDetect_BrandWithoutPdpGateFails(t *testing.T) {
	o := orch(t, catalog.BrandRecord{Name: "nike", CashbackPercent: 5})
	v := o.Detect(parse(t, thinFixture, "https://blog.example.com/nike-history"))

	if v.IsQualifyingPage {
		t.Errorf("blog page must not qualify, got %+v", v)
	}
	if v.WinningBrand != nil {
		t.Errorf("vote must not run below the PDP gate, got %+v", v.WinningBrand)
	}
}

func TestDetect_PdpWithoutBrandFails(t *testing.T) {
	// Strong PDP signals, but the catalog has no matching brand.
	o := orch(t, catalog.BrandRecord{Name: "adidas", CashbackPercent: 4})
	v := o.Detect(parse(t, pdpFixture, "https://shop.example.com/product/air-max-90"))

	if v.IsQualifyingPage {
		t.Errorf("no catalog brand matched, must not qualify: %+v", v)
	}
	if v.ConfidenceScore < 50 {
		t.Errorf("score should still be reported, got %d", v.ConfidenceScore)
	}
}

func TestDetect_EmptyCatalog(t *testing.T) {
	o := orch(t)
	v := o.Detect(parse(t, pdpFixture, "https://shop.example.com/product/air-max-90"))
	if v.IsQualifyingPage || v.WinningBrand != nil {
		t.Errorf("empty catalog must never qualify, got %+v", v)
	}
}

func TestSummarize(t *testing.T) {
	d := parse(t, `<html><body><main><h1>Air Max 90</h1>
		<p>Classic cushioning.</p>
		<script>evil()</script></main></body></html>`, "")
	md := Summarize(d)
	if !strings.Contains(md, "Air Max 90") {
		t.Errorf("summary should carry the heading, got %q", md)
	}
	if strings.Contains(md, "evil") {
		t.Errorf("summary must be sanitized, got %q", md)
	}
}
