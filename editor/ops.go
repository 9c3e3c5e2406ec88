package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/reportedit/chart"
	"github.com/hazyhaar/reportedit/sandbox"
	"github.com/hazyhaar/reportedit/sections"
	"github.com/hazyhaar/reportedit/theme"
	"github.com/hazyhaar/reportedit/toolbar"
)

// Charts discovers the live charts.
func (c *Controller) Charts(ctx context.Context) ([]chart.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == "" {
		return nil, ErrNoDocument
	}
	list, err := c.charts.Discover(ctx)
	if c.degraded("list charts", err) {
		return []chart.Descriptor{}, nil
	}
	return list, err
}

// Chart returns one live chart.
func (c *Controller) Chart(ctx context.Context, id string) (chart.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == "" {
		return chart.Descriptor{}, ErrNoDocument
	}
	return c.charts.Get(ctx, id)
}

// UpdateChart pushes a whole descriptor onto the live chart.
func (c *Controller) UpdateChart(ctx context.Context, d chart.Descriptor) (chart.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEdit {
		return chart.Descriptor{}, ErrNotEditing
	}
	out, err := c.charts.Update(ctx, d)
	if c.degraded("update chart", err) {
		return d, nil
	}
	if err != nil {
		return chart.Descriptor{}, err
	}
	c.notify(Notification{Type: NoteChartSelected, Data: out})
	return out, nil
}

// EditChart applies ops to the current descriptor of chart id, in order,
// then pushes the result. An invalid op leaves the live chart untouched.
func (c *Controller) EditChart(ctx context.Context, id string, ops ...chart.Op) (chart.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEdit {
		return chart.Descriptor{}, ErrNotEditing
	}
	d, err := c.charts.Get(ctx, id)
	if c.degraded("edit chart", err) {
		return chart.Descriptor{ID: id}, nil
	}
	if err != nil {
		return chart.Descriptor{}, err
	}
	for i, op := range ops {
		if err := chart.Apply(&d, op); err != nil {
			return chart.Descriptor{}, fmt.Errorf("editor: op %d (%s): %w", i, op.Kind, err)
		}
	}
	out, err := c.charts.Update(ctx, d)
	if c.degraded("edit chart", err) {
		return d, nil
	}
	if err != nil {
		return chart.Descriptor{}, err
	}
	c.notify(Notification{Type: NoteChartSelected, Data: out})
	return out, nil
}

// Sections lists the live document's sections.
func (c *Controller) Sections(ctx context.Context) ([]sections.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == "" {
		return nil, ErrNoDocument
	}
	list, err := c.sections.Detect(ctx)
	if c.degraded("list sections", err) {
		return []sections.Summary{}, nil
	}
	return list, err
}

// MoveSection drops section from onto section to.
func (c *Controller) MoveSection(ctx context.Context, from, to int) ([]sections.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEdit {
		return nil, ErrNotEditing
	}
	list, err := c.moveLocked(ctx, func() (sections.Move, error) { return c.sections.Move(ctx, from, to) })
	if c.degraded("move section", err) {
		return []sections.Summary{}, nil
	}
	return list, err
}

func (c *Controller) moveLocked(ctx context.Context, move func() (sections.Move, error)) ([]sections.Summary, error) {
	if _, err := move(); err != nil {
		return nil, err
	}
	list, err := c.sections.Detect(ctx)
	if err != nil {
		return nil, err
	}
	c.notify(Notification{Type: NoteSections, Data: list})
	return list, nil
}

// Format actions.
const (
	FormatBold     = "bold"
	FormatItalic   = "italic"
	FormatFontSize = "font_size"
	FormatColor    = "color"
)

// FormatRequest is one toolbar action.
type FormatRequest struct {
	Action string `json:"action"`
	Size   int    `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
}

// Format runs a toolbar action on the current selection. Without a
// selection it does nothing.
func (c *Controller) Format(ctx context.Context, req FormatRequest) (toolbar.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEdit {
		return toolbar.State{}, ErrNotEditing
	}

	var st toolbar.State
	var err error
	switch req.Action {
	case FormatBold:
		st, err = c.toolbar.Bold(ctx)
	case FormatItalic:
		st, err = c.toolbar.Italic(ctx)
	case FormatFontSize:
		st, err = c.toolbar.FontSize(ctx, req.Size)
	case FormatColor:
		st, err = c.toolbar.Color(ctx, req.Color)
	default:
		return c.toolbar.State(), fmt.Errorf("%w: %q", ErrFormat, req.Action)
	}
	if err == nil {
		c.notify(Notification{Type: NoteToolbar, Data: st})
	}
	return st, err
}

// SetFrameOffset records where the operator UI renders the sandbox.
func (c *Controller) SetFrameOffset(p toolbar.Point) {
	c.toolbar.SetFrameOffset(p)
}

// Toolbar returns the toolbar state.
func (c *Controller) Toolbar() toolbar.State {
	return c.toolbar.State()
}

// Theme applies the non-empty overrides.
func (c *Controller) Theme(ctx context.Context, o theme.Overrides) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEdit {
		return ErrNotEditing
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if o.FontFamily != "" {
		if err := c.theme.SetFontFamily(ctx, o.FontFamily); err != nil {
			return err
		}
	}
	if o.Background != "" {
		if err := c.theme.SetBackgroundColor(ctx, o.Background); err != nil {
			return err
		}
	}
	if o.Accent != "" {
		if err := c.theme.SetAccentColor(ctx, o.Accent); err != nil {
			return err
		}
	}
	return nil
}

// Run dispatches runtime events until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	events := c.surface.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.Dispatch(ctx, ev); err != nil {
				c.logger.Warn("editor: event", "type", ev.Type, "error", err)
			}
		}
	}
}

// Dispatch handles one runtime event. Events outside edit mode are
// ignored, except reset.
func (c *Controller) Dispatch(ctx context.Context, ev sandbox.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Type == sandbox.EventReset {
		wasEditing := c.mode == ModeEdit
		c.resetLocked()
		if wasEditing {
			c.logger.Warn("editor: sandbox reset, live edits lost")
			c.notify(Notification{Type: NoteMode, Data: ModeView})
		}
		// The relaunched tab shows the last document the host loaded,
		// which predates any save.
		if c.doc != "" {
			if err := c.surface.Load(ctx, c.doc); err != nil {
				c.logger.Warn("editor: reload after reset failed", "error", err)
			}
		}
		return nil
	}
	if c.mode != ModeEdit {
		return nil
	}

	var err error
	switch ev.Type {
	case sandbox.EventChartClick:
		_, err = c.charts.HandleClick(ctx, ev.Payload)
	case sandbox.EventSectionDrop:
		_, err = c.moveLocked(ctx, func() (sections.Move, error) { return c.sections.OnDrop(ctx, ev.Payload) })
	case sandbox.EventSelection:
		var st toolbar.State
		st, err = c.toolbar.OnSelection(ev.Payload)
		if err == nil {
			c.notify(Notification{Type: NoteToolbar, Data: st})
		}
	default:
		c.logger.Debug("editor: unhandled event", "type", ev.Type)
	}
	if errors.Is(err, sandbox.ErrUnavailable) {
		return nil
	}
	return err
}

// degraded reports whether err means the sandbox document is out of reach.
// UI operations then do nothing; only extraction fails on it.
func (c *Controller) degraded(op string, err error) bool {
	if !errors.Is(err, sandbox.ErrUnavailable) {
		return false
	}
	c.logger.Warn("editor: sandbox unavailable, "+op+" skipped", "error", err)
	return true
}
