package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns all nodes matching a simple CSS selector.
// Supported subset:
//   - tag: "article", "button"
//   - .class: ".product-brand"
//   - #id: "#main"
//   - tag.class, tag#id
//   - [attr], [attr=val], [attr*=val] (substring), [attr^=val] (prefix)
//   - descendant combinator: parts separated by spaces
func (d *Document) QuerySelectorAll(selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(d.root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}
	return matches
}

// QueryAll is QuerySelectorAll applied to every selector in turn,
// concatenating results in selector order.
func (d *Document) QueryAll(selectors ...string) []*html.Node {
	var all []*html.Node
	for _, sel := range selectors {
		all = append(all, d.QuerySelectorAll(sel)...)
	}
	return all
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && matchesSelector(n, m) {
			results = append(results, n)
		}
		return true
	})
	return results
}

type attrOp int

const (
	attrPresent attrOp = iota
	attrEquals
	attrContains
	attrPrefix
)

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	op      attrOp
}

// parseSimpleSelector parses "tag.class", "#id", "[attr*=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		switch {
		case strings.Contains(attrPart, "*="):
			kv := strings.SplitN(attrPart, "*=", 2)
			s.attrKey, s.attrVal, s.op = kv[0], strings.Trim(kv[1], `"'`), attrContains
		case strings.Contains(attrPart, "^="):
			kv := strings.SplitN(attrPart, "^=", 2)
			s.attrKey, s.attrVal, s.op = kv[0], strings.Trim(kv[1], `"'`), attrPrefix
		case strings.Contains(attrPart, "="):
			kv := strings.SplitN(attrPart, "=", 2)
			s.attrKey, s.attrVal, s.op = kv[0], strings.Trim(kv[1], `"'`), attrEquals
		default:
			s.attrKey, s.op = attrPart, attrPresent
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}

	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		val := Attr(n, s.attrKey)
		switch s.op {
		case attrPresent:
			if !HasAttr(n, s.attrKey) {
				return false
			}
		case attrEquals:
			if val != s.attrVal {
				return false
			}
		case attrContains:
			if !strings.Contains(val, s.attrVal) {
				return false
			}
		case attrPrefix:
			if !strings.HasPrefix(val, s.attrVal) {
				return false
			}
		}
	}

	return true
}
