package theme

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/reportedit/internal/dom"
	"github.com/hazyhaar/reportedit/sandbox/sandboxtest"
)

func TestTranslucent(t *testing.T) {
	cases := map[string]string{
		"#3B82F6": "#3b82f622",
		"#abc":    "#aabbcc22",
		" #0F0 ":  "#00ff0022",
	}
	for in, want := range cases {
		got, err := Translucent(in)
		if err != nil || got != want {
			t.Errorf("Translucent(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"blue", "#1g3", "#12345", "#1234567"} {
		if _, err := Translucent(bad); !errors.Is(err, ErrColor) {
			t.Errorf("Translucent(%q): expected ErrColor, got %v", bad, err)
		}
	}
}

func TestAccentCSS(t *testing.T) {
	css, err := AccentCSS("#ef4444")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"h1, h2, h3 { color: #ef4444", "a { color: #ef4444", "background-color: #ef444422", "border-color: #ef4444 !important"} {
		if !strings.Contains(css, want) {
			t.Errorf("css missing %q:\n%s", want, css)
		}
	}
}

func TestValidateColor(t *testing.T) {
	for _, ok := range []string{"#fff", "rgb(1, 2, 3)", "hsla(10, 50%, 50%, 0.5)", "white"} {
		if _, err := ValidateColor(ok); err != nil {
			t.Errorf("%q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "red; color: blue", "url(x)", "#12", "#zzz"} {
		if _, err := ValidateColor(bad); !errors.Is(err, ErrColor) {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestApplier_AccentReplaces(t *testing.T) {
	s := sandboxtest.New()
	a := NewApplier(s, nil)
	ctx := context.Background()

	if err := a.SetAccentColor(ctx, "#3b82f6"); err != nil {
		t.Fatal(err)
	}
	if err := a.SetAccentColor(ctx, "#22c55e"); err != nil {
		t.Fatal(err)
	}
	if err := a.SetAccentColor(ctx, "green"); !errors.Is(err, ErrColor) {
		t.Fatalf("expected ErrColor, got %v", err)
	}
	if n := s.Called("theme.accent"); n != 2 {
		t.Fatalf("theme.accent calls: %d", n)
	}

	s.SetUnavailable(true)
	if err := a.SetFontFamily(ctx, "Georgia, serif"); err != nil {
		t.Fatalf("unavailable sandbox should be a no-op: %v", err)
	}
}

func TestApplyStatic_Idempotent(t *testing.T) {
	doc, _ := dom.Parse(`<html><head></head><body style="margin: 0"><h1>T</h1></body></html>`)
	o := Overrides{FontFamily: "Georgia, serif", Background: "#fafafa", Accent: "#3b82f6"}
	if err := ApplyStatic(doc, o); err != nil {
		t.Fatal(err)
	}
	o.Accent = "#ef4444"
	if err := ApplyStatic(doc, o); err != nil {
		t.Fatal(err)
	}

	styles := dom.QuerySelectorAll(doc, "#"+AccentStyleID)
	if len(styles) != 1 {
		t.Fatalf("accent stylesheets: %d", len(styles))
	}
	if !strings.Contains(dom.Text(styles[0]), "#ef4444") || strings.Contains(dom.Text(styles[0]), "#3b82f6") {
		t.Fatalf("last write did not win: %s", dom.Text(styles[0]))
	}
	body := dom.Body(doc)
	if dom.Style(body, "font-family") != "Georgia, serif" || dom.Style(body, "margin") != "0" {
		t.Fatalf("body style: %q", dom.GetAttr(body, "style"))
	}
}
