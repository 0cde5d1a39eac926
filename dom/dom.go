// Package dom presents a parsed page snapshot to the detection pipeline.
//
// A Document wraps the x/net/html tree of one DOM snapshot together with
// the page URL it was taken from. The detection engine never touches a
// live browser — it works on Documents, which makes every detector a
// pure function of a snapshot and trivially testable against HTML
// fixtures.
package dom

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is one immutable DOM snapshot.
type Document struct {
	root *html.Node
	url  *url.URL
}

// Parse builds a Document from raw HTML. pageURL may be empty (URL-based
// detectors then contribute nothing).
func Parse(raw []byte, pageURL string) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}

	var u *url.URL
	if pageURL != "" {
		u, err = url.Parse(pageURL)
		if err != nil {
			u = nil
		}
	}

	return &Document{root: root, url: u}, nil
}

// URL returns the page URL, or nil when unknown.
func (d *Document) URL() *url.URL {
	return d.url
}

// Root returns the document root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Title returns the <title> text, trimmed.
func (d *Document) Title() string {
	n := findFirstByTag(d.root, atom.Title)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(Text(n))
}

// Meta returns the content of the first <meta> whose name, property, or
// itemprop attribute equals key. Empty string when absent.
func (d *Document) Meta(key string) string {
	var found string
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
			return true
		}
		for _, attrKey := range []string{"name", "property", "itemprop"} {
			if strings.EqualFold(Attr(n, attrKey), key) {
				found = Attr(n, "content")
				return false
			}
		}
		return true
	})
	return found
}

// BodyText returns the visible text of <body> with collapsed whitespace.
// Script and style subtrees are skipped.
func (d *Document) BodyText() string {
	body := findFirstByTag(d.root, atom.Body)
	if body == nil {
		body = d.root
	}
	return Text(body)
}

// JSONLD returns the raw contents of every
// <script type="application/ld+json"> element in document order.
func (d *Document) JSONLD() []string {
	var blocks []string
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script &&
			strings.EqualFold(Attr(n, "type"), "application/ld+json") {
			if n.FirstChild != nil {
				blocks = append(blocks, n.FirstChild.Data)
			}
			return true
		}
		return true
	})
	return blocks
}

// Text collects the visible text of a subtree, whitespace-collapsed.
func Text(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Render serialises a subtree back to HTML.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether a node carries an attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// walk visits nodes depth-first until fn returns false.
func walk(root *html.Node, fn func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(root)
}

func findFirstByTag(root *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAllByTag returns all elements with the given tag.
func FindAllByTag(root *html.Node, tag atom.Atom) []*html.Node {
	var results []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			results = append(results, n)
		}
		return true
	})
	return results
}
