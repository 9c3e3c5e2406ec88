package theme

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/reportedit/internal/dom"
)

// Overrides is a set of theme changes for a parsed document. Empty fields
// are left alone.
type Overrides struct {
	FontFamily string `json:"font_family,omitempty" yaml:"font_family"`
	Background string `json:"background,omitempty" yaml:"background"`
	Accent     string `json:"accent,omitempty" yaml:"accent"`
}

// Validate checks every non-empty field.
func (o Overrides) Validate() error {
	if o.FontFamily != "" {
		if _, err := ValidateFont(o.FontFamily); err != nil {
			return err
		}
	}
	if o.Background != "" {
		if _, err := ValidateColor(o.Background); err != nil {
			return err
		}
	}
	if o.Accent != "" {
		if _, err := NormalizeHex(o.Accent); err != nil {
			return err
		}
	}
	return nil
}

// ApplyStatic applies o to a parsed document the way the live applier does.
func ApplyStatic(doc *html.Node, o Overrides) error {
	if err := o.Validate(); err != nil {
		return err
	}
	body := dom.Body(doc)
	if body != nil && o.FontFamily != "" {
		dom.SetStyle(body, "font-family", o.FontFamily)
	}
	if body != nil && o.Background != "" {
		dom.SetStyle(body, "background-color", o.Background)
	}
	if o.Accent == "" {
		return nil
	}

	css, _ := AccentCSS(o.Accent)
	style := dom.QuerySelector(doc, "#"+AccentStyleID)
	if style == nil {
		style = dom.NewElement(atom.Style, "id", AccentStyleID)
		parent := dom.Head(doc)
		if parent == nil {
			parent = body
		}
		if parent == nil {
			return nil
		}
		parent.AppendChild(style)
	}
	dom.SetText(style, css)
	return nil
}
