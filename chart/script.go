package chart

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Span is a byte range [Start, End) of a script.
type Span struct {
	Start, End int
}

// Constructor is one `new Chart(...)` call found in a script.
type Constructor struct {
	Call  Span   // from "new" through the closing parenthesis
	Open  int    // offset of "("
	Close int    // offset of ")"
	Args  []Span // trimmed top-level arguments
}

// ParseConstructors finds every `new Chart(...)` (or `new window.Chart(...)`)
// call in a script. The scanner skips strings, template literals with
// nested ${} expressions, and comments, and balances brackets to find
// argument boundaries. Regex literals containing quotes or brackets are not
// recognized and can confuse it.
func ParseConstructors(src string) []Constructor {
	var out []Constructor
	for i := 0; i < len(src); {
		if k := skipLiteral(src, i); k != i {
			i = k
			continue
		}
		if !isIdentStart(src[i]) {
			i++
			continue
		}
		j := i
		for j < len(src) && isIdentPart(src[j]) {
			j++
		}
		if src[i:j] == "new" && (i == 0 || src[i-1] != '.') {
			if c, ok := parseNewChart(src, i, j); ok {
				out = append(out, c)
			}
		}
		i = j
	}
	return out
}

func parseNewChart(src string, start, i int) (Constructor, bool) {
	i = skipSpace(src, i)
	last := ""
	for {
		j := i
		for j < len(src) && isIdentPart(src[j]) {
			j++
		}
		if j == i {
			return Constructor{}, false
		}
		last = src[i:j]
		i = skipSpace(src, j)
		if i < len(src) && src[i] == '.' {
			i = skipSpace(src, i+1)
			continue
		}
		break
	}
	if last != "Chart" || i >= len(src) || src[i] != '(' {
		return Constructor{}, false
	}

	end := skipBalanced(src, i)
	if end > len(src) || src[end-1] != ')' {
		return Constructor{}, false
	}
	c := Constructor{Call: Span{start, end}, Open: i, Close: end - 1}
	c.Args = splitArgs(src, i+1, end-1)
	return c, true
}

// splitArgs splits src[from:to] at top-level commas.
func splitArgs(src string, from, to int) []Span {
	var args []Span
	depth := 0
	argStart := from
	for i := from; i < to; {
		if k := skipLiteral(src, i); k != i {
			i = k
			continue
		}
		switch src[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, trimSpan(src, argStart, i))
				argStart = i + 1
			}
		}
		i++
	}
	if last := trimSpan(src, argStart, to); last.End > last.Start {
		args = append(args, last)
	}
	return args
}

func trimSpan(src string, start, end int) Span {
	for start < end && isSpace(src[start]) {
		start++
	}
	for end > start && isSpace(src[end-1]) {
		end--
	}
	return Span{start, end}
}

// skipLiteral returns the offset just past the string, template literal or
// comment starting at i, or i when none starts there.
func skipLiteral(src string, i int) int {
	switch {
	case src[i] == '"' || src[i] == '\'':
		return skipQuoted(src, i, src[i])
	case src[i] == '`':
		return skipTemplate(src, i)
	case strings.HasPrefix(src[i:], "//"):
		if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
			return i + j + 1
		}
		return len(src)
	case strings.HasPrefix(src[i:], "/*"):
		if j := strings.Index(src[i+2:], "*/"); j >= 0 {
			return i + 2 + j + 2
		}
		return len(src)
	}
	return i
}

func skipQuoted(src string, i int, q byte) int {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q, '\n':
			return j + 1
		}
	}
	return len(src)
}

func skipTemplate(src string, i int) int {
	for j := i + 1; j < len(src); j++ {
		switch {
		case src[j] == '\\':
			j++
		case src[j] == '`':
			return j + 1
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			j = skipBalanced(src, j+1) - 1
		}
	}
	return len(src)
}

// skipBalanced expects an opening bracket at i and returns the offset just
// past its match (len(src) when unbalanced).
func skipBalanced(src string, i int) int {
	depth := 0
	for j := i; j < len(src); {
		if k := skipLiteral(src, j); k != j {
			j = k
			continue
		}
		switch src[j] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return len(src)
}

func skipSpace(src string, i int) int {
	for i < len(src) {
		if isSpace(src[i]) {
			i++
			continue
		}
		if k := skipLiteral(src, i); k != i && src[i] == '/' {
			i = k
			continue
		}
		break
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// mentionsID reports whether a JS expression references the element id as
// a quoted string, bare or as a "#id" selector.
func mentionsID(expr, id string) bool {
	for _, q := range []string{`"`, `'`, "`"} {
		if strings.Contains(expr, q+id+q) || strings.Contains(expr, q+"#"+id+q) {
			return true
		}
	}
	return false
}

// declaration returns the initializer of `const|let|var ident = ...` in src.
func declaration(src, ident string) (string, bool) {
	re := regexp.MustCompile(`(?:^|[^\w$.])(?:const|let|var)\s+` + regexp.QuoteMeta(ident) + `\s*=\s*([^;\n]+)`)
	m := re.FindStringSubmatch(src)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// leadingIdent returns the identifier an expression starts with.
func leadingIdent(expr string) string {
	expr = strings.TrimSpace(expr)
	j := 0
	for j < len(expr) && isIdentPart(expr[j]) {
		j++
	}
	if j == 0 || !isIdentStart(expr[0]) {
		return ""
	}
	return expr[:j]
}

// argRefersTo reports whether a constructor's surface argument resolves to
// the element id, directly or through up to three variable declarations
// (canvas -> ctx -> chart).
func argRefersTo(src, arg, id string) bool {
	for depth := 0; depth < 3; depth++ {
		if mentionsID(arg, id) {
			return true
		}
		ident := leadingIdent(arg)
		if ident == "" || ident == "document" || ident == "window" {
			return false
		}
		init, ok := declaration(src, ident)
		if !ok {
			return false
		}
		arg = init
	}
	return mentionsID(arg, id)
}

// pickConstructor chooses the call building the chart on surface id:
// first argument referencing the id (directly or via a declared variable),
// else the only call of the script. Calls in claimed are skipped.
func pickConstructor(src string, calls []Constructor, id string, claimed map[int]bool) (int, bool) {
	for i, c := range calls {
		if claimed[i] || len(c.Args) == 0 {
			continue
		}
		arg := src[c.Args[0].Start:c.Args[0].End]
		if mentionsID(arg, id) {
			return i, true
		}
	}
	for i, c := range calls {
		if claimed[i] || len(c.Args) == 0 {
			continue
		}
		arg := src[c.Args[0].Start:c.Args[0].End]
		if isIdentifier(arg) && argRefersTo(src, arg, id) {
			return i, true
		}
	}
	if len(calls) == 1 && !claimed[0] && len(calls[0].Args) > 0 && mentionsID(src, id) {
		return 0, true
	}
	return 0, false
}

// RewriteConstructor replaces the config argument of the call constructing
// the chart on surface id with cfg, leaving the rest of src verbatim. The
// chosen call's ordinal is returned so callers can mark it claimed; ok is
// false when no call matches.
func RewriteConstructor(src, id string, cfg Config, claimed map[int]bool) (out string, ordinal int, ok bool, err error) {
	calls := ParseConstructors(src)
	ordinal, ok = pickConstructor(src, calls, id, claimed)
	if !ok {
		return src, 0, false, nil
	}
	lit, err := configLiteral(cfg)
	if err != nil {
		return src, 0, false, err
	}

	c := calls[ordinal]
	if len(c.Args) >= 2 {
		a := c.Args[1]
		return src[:a.Start] + lit + src[a.End:], ordinal, true, nil
	}
	a := c.Args[0]
	return src[:a.End] + ", " + lit + src[a.End:], ordinal, true, nil
}

// configLiteral serializes cfg as a JS object literal safe to embed in a
// <script> element: the encoder escapes <, > and & as \u00XX sequences.
func configLiteral(cfg Config) (string, error) {
	if len(cfg.Data) == 0 {
		cfg.Data = json.RawMessage("{}")
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("chart: serialize config: %w", err)
	}
	return string(b), nil
}

// ConstructorScript returns a standalone script that builds the chart on
// surface id once the DOM is ready, replacing any chart already bound to it.
func ConstructorScript(id string, cfg Config) (string, error) {
	lit, err := configLiteral(cfg)
	if err != nil {
		return "", err
	}
	idLit, _ := json.Marshal(id)
	return fmt.Sprintf(`(function () {
  function build() {
    var el = document.getElementById(%s);
    if (!el || typeof Chart === "undefined") return;
    if (Chart.getChart && Chart.getChart(el)) Chart.getChart(el).destroy();
    new Chart(el, %s);
  }
  if (document.readyState === "loading") document.addEventListener("DOMContentLoaded", build);
  else build();
})();`, idLit, lit), nil
}

var getElementByIDRe = regexp.MustCompile(`getElementById\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]\s*\)`)
var querySelectorRe = regexp.MustCompile(`querySelector\(\s*["'` + "`" + `]#([\w-]+)["'` + "`" + `]\s*\)`)
var quotedRe = regexp.MustCompile(`^["'` + "`" + `]#?([^"'` + "`" + `]+)["'` + "`" + `]$`)

// surfaceID recovers the element id a constructor's first argument refers
// to, following variable declarations like argRefersTo does.
func surfaceID(src, arg string) string {
	for depth := 0; depth < 4; depth++ {
		arg = strings.TrimSpace(arg)
		if m := getElementByIDRe.FindStringSubmatch(arg); m != nil {
			return m[1]
		}
		if m := quotedRe.FindStringSubmatch(arg); m != nil {
			return m[1]
		}
		if m := querySelectorRe.FindStringSubmatch(arg); m != nil {
			return m[1]
		}
		ident := leadingIdent(arg)
		if ident == "" {
			return ""
		}
		init, ok := declaration(src, ident)
		if !ok {
			return ""
		}
		arg = init
	}
	return ""
}

// ScanConfigs reads back the charts a script constructs with a JSON config
// literal, the form RewriteConstructor and ConstructorScript produce.
// Calls whose config is not valid JSON or whose surface cannot be resolved
// are skipped.
func ScanConfigs(src string) []LiveConfig {
	var out []LiveConfig
	for _, c := range ParseConstructors(src) {
		if len(c.Args) < 2 {
			continue
		}
		id := surfaceID(src, src[c.Args[0].Start:c.Args[0].End])
		if id == "" {
			continue
		}
		var cfg Config
		if err := json.Unmarshal([]byte(src[c.Args[1].Start:c.Args[1].End]), &cfg); err != nil {
			continue
		}
		out = append(out, LiveConfig{ID: id, CanvasID: id, Config: cfg})
	}
	return out
}
