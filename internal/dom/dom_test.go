package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestRender_Doctype(t *testing.T) {
	doc, err := Parse(`<!DOCTYPE html><html><head></head><body><p>x</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Render(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, Doctype+"<html>") {
		t.Fatalf("Render: got %q", out)
	}
	if strings.Count(strings.ToLower(out), "<!doctype") != 1 {
		t.Fatalf("Render: doctype doubled in %q", out)
	}
}

func TestRender_ScriptRaw(t *testing.T) {
	doc, _ := Parse(`<html><body><script>if (a < b && c) { x(); }</script></body></html>`)
	out, _ := Render(doc)
	if !strings.Contains(out, "if (a < b && c) { x(); }") {
		t.Fatalf("script text was escaped: %q", out)
	}
}

func TestQuerySelectorAll(t *testing.T) {
	doc, _ := Parse(`<html><head><style id="edit-mode-styles"></style></head><body>
		<div class="a section-drag-handle"></div>
		<section><div class="section-drag-handle"></div><h2>T</h2></section>
		<div data-section-index="1"></div>
	</body></html>`)

	if got := len(QuerySelectorAll(doc, ".section-drag-handle")); got != 2 {
		t.Errorf(".section-drag-handle: got %d, want 2", got)
	}
	if QuerySelector(doc, "#edit-mode-styles") == nil {
		t.Error("#edit-mode-styles not found")
	}
	if got := len(QuerySelectorAll(doc, "section .section-drag-handle")); got != 1 {
		t.Errorf("descendant: got %d, want 1", got)
	}
	if got := len(QuerySelectorAll(doc, "div[data-section-index=1]")); got != 1 {
		t.Errorf("attr selector: got %d, want 1", got)
	}
}

func TestRemove(t *testing.T) {
	doc, _ := Parse(`<html><body><div class="h"><div class="h"></div></div><p class="h"></p><p></p></body></html>`)
	n := Remove(doc, func(n *html.Node) bool { return HasClass(n, "h") })
	if n != 2 {
		t.Fatalf("Remove: got %d, want 2 (nested match leaves with its parent)", n)
	}
	if got := len(Children(Body(doc))); got != 1 {
		t.Fatalf("body children: got %d, want 1", got)
	}
}

func TestRemoveClass(t *testing.T) {
	n := NewElement(0)
	SetAttr(n, "class", "card dragging drag-over")
	RemoveClass(n, "dragging")
	if got := GetAttr(n, "class"); got != "card drag-over" {
		t.Fatalf("class: got %q", got)
	}
	RemoveClass(n, "card")
	RemoveClass(n, "drag-over")
	if HasAttr(n, "class") {
		t.Fatal("empty class attribute should be removed")
	}
}

func TestStyleEditing(t *testing.T) {
	n := NewElement(0, "style", `outline: none; background: url("data:image/svg+xml;base64,AA==") no-repeat; color: red`)

	decls := ParseStyle(GetAttr(n, "style"))
	if len(decls) != 3 {
		t.Fatalf("ParseStyle: got %d declarations, want 3: %+v", len(decls), decls)
	}

	RemoveStyle(n, "outline")
	if Style(n, "outline") != "" {
		t.Fatal("outline still present")
	}
	SetStyle(n, "color", "#111")
	SetStyle(n, "font-family", "Georgia, serif")
	if got := Style(n, "color"); got != "#111" {
		t.Errorf("color: got %q", got)
	}
	if got := Style(n, "font-family"); got != "Georgia, serif" {
		t.Errorf("font-family: got %q", got)
	}
	if !strings.Contains(Style(n, "background"), "base64,AA==") {
		t.Errorf("background mangled: %q", Style(n, "background"))
	}

	RemoveStyle(n, "color")
	RemoveStyle(n, "background")
	RemoveStyle(n, "font-family")
	if HasAttr(n, "style") {
		t.Fatal("empty style attribute should be removed")
	}
}
