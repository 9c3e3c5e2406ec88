package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns all nodes matching a simple CSS selector.
// Supported subset:
//   - tag: "script", "style"
//   - .class: ".section-drag-handle"
//   - #id: "#edit-mode-styles"
//   - tag.class, tag#id
//   - tag[attr], tag[attr=val]
//   - descendant combinator (space separated parts)
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		seen := make(map[*html.Node]bool)
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				for _, m := range matchSimple(c, parts[i]) {
					if !seen[m] {
						seen[m] = true
						next = append(next, m)
					}
				}
			}
		}
		matches = next
	}
	return matches
}

// QuerySelector returns the first match of selector, or nil.
func QuerySelector(root *html.Node, selector string) *html.Node {
	if m := QuerySelectorAll(root, selector); len(m) > 0 {
		return m[0]
	}
	return nil
}

// Matches reports whether n matches a single simple selector part.
func Matches(n *html.Node, sel string) bool {
	return matchesSelector(n, parseSimpleSelector(sel))
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	return All(root, func(n *html.Node) bool { return matchesSelector(n, m) })
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = attrPart[:eq]
			s.attrVal = strings.Trim(attrPart[eq+1:], `"'`)
		} else {
			s.attrKey = attrPart
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
	s.tag = strings.ToLower(sel)
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}
	if s.id != "" && GetAttr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !HasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		if !HasAttr(n, s.attrKey) {
			return false
		}
		if s.attrVal != "" && GetAttr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}
