package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Declaration is one property: value pair of an inline style attribute.
type Declaration struct {
	Property string
	Value    string
}

// ParseStyle splits an inline style attribute into declarations. Semicolons
// inside quotes or parentheses (url(data:...;base64,...)) do not split.
func ParseStyle(style string) []Declaration {
	var decls []Declaration
	for _, part := range splitDeclarations(style) {
		colon := strings.IndexByte(part, ':')
		if colon < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(part[:colon]))
		val := strings.TrimSpace(part[colon+1:])
		if prop == "" {
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: val})
	}
	return decls
}

// FormatStyle joins declarations back into attribute form.
func FormatStyle(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.Property+": "+d.Value)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

// Style returns the inline value of prop on n, or "".
func Style(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range ParseStyle(GetAttr(n, "style")) {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

// SetStyle sets prop inline on n, replacing an existing declaration in place.
func SetStyle(n *html.Node, prop, val string) {
	prop = strings.ToLower(prop)
	decls := ParseStyle(GetAttr(n, "style"))
	found := false
	for i := range decls {
		if decls[i].Property == prop {
			decls[i].Value = val
			found = true
		}
	}
	if !found {
		decls = append(decls, Declaration{Property: prop, Value: val})
	}
	SetAttr(n, "style", FormatStyle(decls))
}

// RemoveStyle drops prop from n's inline style; the attribute goes away
// when no declaration is left.
func RemoveStyle(n *html.Node, prop string) {
	if !HasAttr(n, "style") {
		return
	}
	prop = strings.ToLower(prop)
	var keep []Declaration
	for _, d := range ParseStyle(GetAttr(n, "style")) {
		if d.Property != prop {
			keep = append(keep, d)
		}
	}
	if len(keep) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", FormatStyle(keep))
}

func splitDeclarations(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}
