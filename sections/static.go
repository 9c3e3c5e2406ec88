package sections

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/reportedit/internal/dom"
)

// HandleClass marks the drag handles inserted while editing.
const HandleClass = "section-drag-handle"

func isHandle(n *html.Node) bool {
	return n.Type == html.ElementNode && dom.HasClass(n, HandleClass)
}

func realChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range dom.Children(n) {
		if !isHandle(c) {
			out = append(out, c)
		}
	}
	return out
}

// DetectNodes returns the sections of a parsed document: direct body
// children that are section, div or article elements and contain a heading
// or more than one element. When none qualify every direct child other
// than script and style is a section.
func DetectNodes(doc *html.Node) []*html.Node {
	body := dom.Body(doc)
	if body == nil {
		return nil
	}
	kids := realChildren(body)

	var found []*html.Node
	for _, el := range kids {
		switch el.DataAtom {
		case atom.Section, atom.Div, atom.Article:
		default:
			continue
		}
		if dom.First(el, dom.IsHeading) != nil || len(realChildren(el)) > 1 {
			found = append(found, el)
		}
	}
	if len(found) > 0 {
		return found
	}
	for _, el := range kids {
		if el.DataAtom != atom.Script && el.DataAtom != atom.Style {
			found = append(found, el)
		}
	}
	return found
}

// Summaries describes the sections of a parsed document.
func Summaries(doc *html.Node) []Summary {
	nodes := DetectNodes(doc)
	out := make([]Summary, len(nodes))
	for i, n := range nodes {
		s := Summary{Index: i, Tag: n.Data}
		if h := dom.First(n, dom.IsHeading); h != nil {
			s.Heading = truncate(strings.TrimSpace(dom.Text(h)), 120)
		}
		out[i] = s
	}
	return out
}

// Apply performs m on a parsed document.
func Apply(doc *html.Node, m Move) error {
	nodes := DetectNodes(doc)
	if _, err := Plan(m.From, m.To, len(nodes)); err != nil {
		return err
	}
	node, target := nodes[m.From], nodes[m.To]
	parent := target.Parent
	if parent == nil || node.Parent != parent {
		return fmt.Errorf("%w: sections do not share a parent", ErrMove)
	}
	parent.RemoveChild(node)
	switch m.Placement {
	case After:
		parent.InsertBefore(node, target.NextSibling)
	default:
		parent.InsertBefore(node, target)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
