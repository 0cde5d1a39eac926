package detect

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"

	"github.com/cashpeek/cashpeek/dom"
)

// maxSummaryLen bounds the markdown attached to tracking events.
const maxSummaryLen = 2000

var summaryPolicy = bluemonday.UGCPolicy()

// Summarize captures the page's main content as markdown for tracking
// diagnostics: first <main> or <article> subtree (whole body as a last
// resort), sanitized, converted, truncated. Returns "" when nothing
// useful is found — the summary is best-effort and never blocks a
// verdict.
func Summarize(d *dom.Document) string {
	var raw string
	for _, tag := range []atom.Atom{atom.Main, atom.Article} {
		if nodes := dom.FindAllByTag(d.Root(), tag); len(nodes) > 0 {
			raw = dom.Render(nodes[0])
			break
		}
	}
	if raw == "" {
		if body := dom.FindAllByTag(d.Root(), atom.Body); len(body) > 0 {
			raw = dom.Render(body[0])
		}
	}
	if raw == "" {
		return ""
	}

	clean := summaryPolicy.Sanitize(raw)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return ""
	}
	if len(md) > maxSummaryLen {
		md = md[:maxSummaryLen]
	}
	return md
}
