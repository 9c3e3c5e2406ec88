// Package theme applies global look overrides to a report: body font,
// body background and an accent color stylesheet.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/hazyhaar/reportedit/sandbox"
)

// ErrColor is returned for a color the applier does not accept.
var ErrColor = errors.New("theme: invalid color")

// ErrFont is returned for a font-family value that is not a plain list.
var ErrFont = errors.New("theme: invalid font family")

// AccentStyleID is the id of the single managed accent stylesheet.
const AccentStyleID = "editor-accent-style"

// Font is a font-family preset offered to the operator.
type Font struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Fonts are the presets of the style panel.
var Fonts = []Font{
	{"Inter", "Inter, sans-serif"},
	{"Arial", "Arial, sans-serif"},
	{"Georgia", "Georgia, serif"},
	{"Playfair Display", "'Playfair Display', serif"},
	{"Roboto", "'Roboto', sans-serif"},
	{"Open Sans", "'Open Sans', sans-serif"},
	{"Lato", "'Lato', sans-serif"},
	{"Montserrat", "'Montserrat', sans-serif"},
	{"Monospace", "monospace"},
}

// Defaults of the style panel.
const (
	DefaultFont       = "Inter, sans-serif"
	DefaultBackground = "#ffffff"
	DefaultAccent     = "#3b82f6"
)

var (
	funcRe = regexp.MustCompile(`^(?:rgb|rgba|hsl|hsla)\([0-9.,%\s/]+\)$`)
	nameRe = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// parseHex parses #rgb or #rrggbb.
func parseHex(c string) (colorful.Color, bool) {
	if len(c) != 4 && len(c) != 7 {
		return colorful.Color{}, false
	}
	col, err := colorful.Hex(c)
	return col, err == nil
}

// NormalizeHex validates #rgb or #rrggbb and returns lowercase #rrggbb.
func NormalizeHex(c string) (string, error) {
	c = strings.TrimSpace(c)
	col, ok := parseHex(c)
	if !ok {
		return "", fmt.Errorf("%w: %q (want #rgb or #rrggbb)", ErrColor, c)
	}
	return col.Hex(), nil
}

// Translucent returns hex with a 0x22 alpha channel (about 13%).
func Translucent(hex string) (string, error) {
	h, err := NormalizeHex(hex)
	if err != nil {
		return "", err
	}
	return h + "22", nil
}

// ValidateColor accepts hex, rgb()/hsl() functions and named colors.
func ValidateColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	switch {
	case strings.HasPrefix(c, "#"):
		if _, ok := parseHex(c); ok {
			return c, nil
		}
	case funcRe.MatchString(c), nameRe.MatchString(c):
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrColor, c)
}

// ValidateFont accepts a font-family list without declaration syntax.
func ValidateFont(f string) (string, error) {
	f = strings.TrimSpace(f)
	if f == "" || strings.ContainsAny(f, ";{}<>:") {
		return "", fmt.Errorf("%w: %q", ErrFont, f)
	}
	return f, nil
}

// AccentCSS returns the accent stylesheet: heading and link color, and a
// translucent background with solid border on .accent and .highlight.
func AccentCSS(color string) (string, error) {
	hex, err := NormalizeHex(color)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`h1, h2, h3 { color: %[1]s !important; }
a { color: %[1]s !important; }
.accent, .highlight { background-color: %[1]s22 !important; border-color: %[1]s !important; }
`, hex), nil
}

// Applier applies overrides to the live document. All three are global and
// last-write-wins.
type Applier struct {
	rt     sandbox.Runtime
	logger *slog.Logger
}

// NewApplier creates an Applier calling into rt.
func NewApplier(rt sandbox.Runtime, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{rt: rt, logger: logger}
}

// SetFontFamily sets the body font.
func (a *Applier) SetFontFamily(ctx context.Context, family string) error {
	f, err := ValidateFont(family)
	if err != nil {
		return err
	}
	return a.call(ctx, "theme.font", f)
}

// SetBackgroundColor sets the body background.
func (a *Applier) SetBackgroundColor(ctx context.Context, color string) error {
	c, err := ValidateColor(color)
	if err != nil {
		return err
	}
	return a.call(ctx, "theme.background", c)
}

// SetAccentColor injects or replaces the accent stylesheet.
func (a *Applier) SetAccentColor(ctx context.Context, color string) error {
	css, err := AccentCSS(color)
	if err != nil {
		return err
	}
	return a.call(ctx, "theme.accent", css)
}

// call degrades to a no-op when the sandbox cannot be reached.
func (a *Applier) call(ctx context.Context, fn string, arg string) error {
	err := a.rt.Call(ctx, fn, nil, arg)
	if errors.Is(err, sandbox.ErrUnavailable) {
		a.logger.Warn("theme: sandbox unavailable, override skipped", "fn", fn)
		return nil
	}
	if err != nil {
		return fmt.Errorf("theme: %s: %w", fn, err)
	}
	a.logger.Debug("theme: applied", "fn", fn, "value", arg)
	return nil
}
