package browser

import (
	"strings"
	"testing"

	"github.com/cashpeek/cashpeek/notify"
)

func TestRenderHTMLEscapesContent(t *testing.T) {
	s := NewSurface(nil)
	markup := s.renderHTML(notify.Content{
		Brand:           `<script>alert(1)</script>Nike`,
		CashbackPercent: 5,
		ProductTitle:    `Air "Max" <img src=x onerror=alert(2)>`,
		OfferURL:        "https://cashpeek.example/search?query=nike&source=extension",
	}, 2_147_480_000)

	if strings.Contains(markup, "<script>") || strings.Contains(markup, "onerror") {
		t.Fatalf("markup carries unsanitized input: %s", markup)
	}
	if !strings.Contains(markup, "Nike") {
		t.Error("brand text lost")
	}
	if !strings.Contains(markup, `id="cashpeek-notification"`) {
		t.Error("overlay id missing")
	}
	if !strings.Contains(markup, "z-index:2147480000") {
		t.Error("z-index missing")
	}
	if !strings.Contains(markup, "5% cashback") {
		t.Error("cashback line missing")
	}
	if !strings.Contains(markup, dismissBinding) {
		t.Error("close button missing")
	}
}

func TestRenderHTMLEscapesOnce(t *testing.T) {
	s := NewSurface(nil)
	markup := s.renderHTML(notify.Content{
		Brand:           "Levi's & Co",
		CashbackPercent: 3,
		ProductTitle:    "501 & 505 Jeans",
		OfferURL:        "https://partner.example/search?query=levis&source=extension",
	}, 1000)

	if strings.Contains(markup, "&amp;amp;") || strings.Contains(markup, "&amp;#39;") {
		t.Fatalf("markup is double-escaped: %s", markup)
	}
	if !strings.Contains(markup, `href="https://partner.example/search?query=levis&amp;source=extension"`) {
		t.Errorf("offer href not escaped exactly once: %s", markup)
	}
	if !strings.Contains(markup, "&amp; Co") {
		t.Errorf("brand ampersand lost: %s", markup)
	}
}

func TestRenderHTMLOfferInvokesDismissBinding(t *testing.T) {
	s := NewSurface(nil)
	markup := s.renderHTML(notify.Content{
		Brand:    "nike",
		OfferURL: "https://partner.example/search?query=nike&source=extension",
	}, 1000)

	offerAt := strings.Index(markup, "Activate offer")
	if offerAt < 0 {
		t.Fatal("offer link missing")
	}
	anchor := markup[strings.LastIndex(markup[:offerAt], "<a "):offerAt]
	if !strings.Contains(anchor, dismissBinding+"('offer')") {
		t.Errorf("offer link does not invoke the dismiss binding: %s", anchor)
	}
	if !strings.Contains(anchor, `target="_blank"`) {
		t.Errorf("offer link missing target=_blank fallback: %s", anchor)
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true}

	cases := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
		{"XHR", false},
	}
	for _, tc := range cases {
		if got := shouldBlock(set, tc.resType); got != tc.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tc.resType, got, tc.want)
		}
	}
}
