// Package toolbar tracks the text selection inside the sandbox while
// editing and issues inline formatting commands on it.
package toolbar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/reportedit/sandbox"
)

// Offset lifts the toolbar above the selection.
const Offset = 48

// ErrColor is returned for a color that cannot be passed to foreColor.
var ErrColor = errors.New("toolbar: invalid color")

// Font size bounds in pixels.
const (
	MinFontSize = 8
	MaxFontSize = 72
)

// Rect is a bounding box in sandbox viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position in operator page coordinates.
type Point struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Selection is what the runtime reports on selectionchange.
type Selection struct {
	Collapsed bool `json:"collapsed"`
	Rect      Rect `json:"rect"`
	Bold      bool `json:"bold"`
	Italic    bool `json:"italic"`
}

// State is the toolbar as the operator sees it.
type State struct {
	Visible  bool  `json:"visible"`
	Position Point `json:"position"`
	Bold     bool  `json:"bold"`
	Italic   bool  `json:"italic"`
}

// Toolbar is hidden until editing is on and the selection is non-empty.
type Toolbar struct {
	rt     sandbox.Runtime
	logger *slog.Logger

	mu      sync.Mutex
	editing bool
	frame   Point
	state   State
}

// New creates a hidden Toolbar.
func New(rt sandbox.Runtime, logger *slog.Logger) *Toolbar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolbar{rt: rt, logger: logger}
}

// SetEditing turns tracking on or off. Turning it off hides the toolbar.
func (t *Toolbar) SetEditing(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.editing = on
	if !on {
		t.state = State{}
	}
}

// SetFrameOffset records where the sandbox sits in the operator page.
func (t *Toolbar) SetFrameOffset(p Point) {
	t.mu.Lock()
	t.frame = p
	t.mu.Unlock()
}

// State returns the current toolbar state.
func (t *Toolbar) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Update applies a selection report and returns the new state.
func (t *Toolbar) Update(sel Selection) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updateLocked(sel)
	return t.state
}

func (t *Toolbar) updateLocked(sel Selection) {
	if !t.editing || sel.Collapsed {
		t.state = State{}
		return
	}
	t.state = State{
		Visible: true,
		Position: Point{
			Top:  t.frame.Top + sel.Rect.Top - Offset,
			Left: t.frame.Left + sel.Rect.Left + sel.Rect.Width/2,
		},
		Bold:   sel.Bold,
		Italic: sel.Italic,
	}
}

// OnSelection handles a selection runtime event.
func (t *Toolbar) OnSelection(payload json.RawMessage) (State, error) {
	var sel Selection
	if err := json.Unmarshal(payload, &sel); err != nil {
		return t.State(), fmt.Errorf("toolbar: selection payload: %w", err)
	}
	return t.Update(sel), nil
}

// Bold toggles bold on the selection.
func (t *Toolbar) Bold(ctx context.Context) (State, error) {
	return t.exec(ctx, "format.exec", "bold", nil)
}

// Italic toggles italic on the selection.
func (t *Toolbar) Italic(ctx context.Context) (State, error) {
	return t.exec(ctx, "format.exec", "italic", nil)
}

// FontSize sets an explicit pixel size on the selection, clamped to
// MinFontSize..MaxFontSize.
func (t *Toolbar) FontSize(ctx context.Context, px int) (State, error) {
	px = max(MinFontSize, min(MaxFontSize, px))
	return t.exec(ctx, "format.fontSize", px)
}

// Color sets the text color of the selection.
func (t *Toolbar) Color(ctx context.Context, css string) (State, error) {
	css = strings.TrimSpace(css)
	if css == "" || strings.ContainsAny(css, ";<>{}") {
		return t.State(), fmt.Errorf("%w: %q", ErrColor, css)
	}
	return t.exec(ctx, "format.exec", "foreColor", css)
}

// exec runs a formatting call. Without editing or a visible selection it
// does nothing; an unreachable sandbox is also a no-op.
func (t *Toolbar) exec(ctx context.Context, fn string, args ...any) (State, error) {
	t.mu.Lock()
	active := t.editing && t.state.Visible
	t.mu.Unlock()
	if !active {
		return t.State(), nil
	}

	var res struct {
		Applied bool `json:"applied"`
		Selection
	}
	if err := t.rt.Call(ctx, fn, &res, args...); err != nil {
		if errors.Is(err, sandbox.ErrUnavailable) {
			t.logger.Warn("toolbar: sandbox unavailable, action skipped", "fn", fn)
			return t.State(), nil
		}
		return t.State(), fmt.Errorf("toolbar: %s: %w", fn, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if res.Applied {
		t.updateLocked(res.Selection)
	}
	return t.state, nil
}
