// Package editor owns the edit session of one report document: it toggles
// edit mode in the sandbox, routes runtime events to the chart, section and
// toolbar controllers, and on save extracts a standalone document that
// becomes the new last-known-good copy.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/reportedit/chart"
	"github.com/hazyhaar/reportedit/idgen"
	"github.com/hazyhaar/reportedit/publish"
	"github.com/hazyhaar/reportedit/sandbox"
	"github.com/hazyhaar/reportedit/sections"
	"github.com/hazyhaar/reportedit/theme"
	"github.com/hazyhaar/reportedit/toolbar"
)

var (
	// ErrExtract wraps every extraction failure. The previous document is
	// kept and the controller stays in edit mode.
	ErrExtract = errors.New("editor: extraction failed")
	// ErrNotEditing is returned by mutations outside edit mode.
	ErrNotEditing = errors.New("editor: not in edit mode")
	// ErrNoDocument is returned before any document was loaded.
	ErrNoDocument = errors.New("editor: no document loaded")
	// ErrFormat is returned for an unknown toolbar action.
	ErrFormat = errors.New("editor: unknown format action")
)

// Mode is the editor state.
type Mode string

const (
	ModeView Mode = "view"
	ModeEdit Mode = "edit"
)

// Session is the transient state of one edit-mode span. It is discarded on
// save, cancel, disable and document load.
type Session struct {
	ID      string                  `json:"id"`
	Active  bool                    `json:"active"`
	Started time.Time               `json:"started"`
	Handles map[string]chart.Handle `json:"handles,omitempty"`

	// Reorderable is set once section drag handles are attached.
	Reorderable bool `json:"reorderable"`
}

// Notification is pushed to subscribers when something the operator sees
// changed.
type Notification struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Notification types.
const (
	NoteMode          = "mode"
	NoteDocument      = "document"
	NoteSession       = "session"
	NoteChartSelected = "chart_selected"
	NoteToolbar       = "toolbar"
	NoteSections      = "sections"
)

// Publisher receives saved documents.
type Publisher interface {
	Publish(ctx context.Context, r publish.Report) error
}

// Config configures a Controller.
type Config struct {
	// SettleDelay is the wait after enabling edit mode before chart click
	// handlers and drag handles are wired. Default: 300ms.
	SettleDelay time.Duration

	// Publisher, when set, receives every saved document.
	Publisher Publisher

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 300 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller is the edit-mode state machine:
//
//	view --Enable--> edit --Save--> view
//	                 edit --Cancel/Disable--> view
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	surface sandbox.Surface

	charts   *chart.Registry
	sections *sections.Controller
	toolbar  *toolbar.Toolbar
	theme    *theme.Applier

	mu      sync.Mutex
	mode    Mode
	doc     string
	name    string
	session *Session
	gen     uint64 // bumped on every load and mode exit; stale settle timers check it

	subMu sync.Mutex
	subs  map[chan Notification]struct{}
}

// New creates a Controller driving surface.
func New(surface sandbox.Surface, cfg Config) *Controller {
	cfg.defaults()
	return &Controller{
		cfg:      cfg,
		logger:   cfg.Logger,
		surface:  surface,
		charts:   chart.NewRegistry(surface, cfg.Logger),
		sections: sections.NewController(surface, cfg.Logger),
		toolbar:  toolbar.New(surface, cfg.Logger),
		theme:    theme.NewApplier(surface, cfg.Logger),
		mode:     ModeView,
		subs:     make(map[chan Notification]struct{}),
	}
}

// Load replaces the document. Any edit session is abandoned.
func (c *Controller) Load(ctx context.Context, name, document string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.surface.Load(ctx, document); err != nil {
		return fmt.Errorf("editor: load: %w", err)
	}
	c.doc = document
	c.name = name
	c.resetLocked()
	c.logger.Info("editor: document loaded", "name", name, "bytes", len(document))
	c.notify(Notification{Type: NoteDocument, Data: map[string]any{"name": name, "bytes": len(document)}})
	return nil
}

// resetLocked drops the session and returns to view mode.
func (c *Controller) resetLocked() {
	c.gen++
	c.mode = ModeView
	c.session = nil
	c.charts.Reset()
	c.toolbar.SetEditing(false)
}

// Enable enters edit mode: body editable, edit stylesheet injected, a new
// session opened. Chart click handlers and section handles are wired once
// SettleDelay has elapsed.
func (c *Controller) Enable(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == "" {
		return Session{}, ErrNoDocument
	}
	if c.mode == ModeEdit {
		return *c.session, nil
	}
	if err := c.surface.Call(ctx, "edit.enable", nil, EditCSS); err != nil {
		if !c.degraded("enable editing", err) {
			return Session{}, fmt.Errorf("editor: enable: %w", err)
		}
	}

	c.mode = ModeEdit
	c.session = &Session{ID: idgen.Session(), Active: true, Started: time.Now().UTC()}
	c.toolbar.SetEditing(true)
	gen := c.gen
	time.AfterFunc(c.cfg.SettleDelay, func() { c.wire(gen) })

	c.logger.Info("editor: edit mode on", "session", c.session.ID)
	c.notify(Notification{Type: NoteMode, Data: ModeEdit})
	return *c.session, nil
}

// wire attaches chart click handlers and section handles for the session
// opened at generation gen, unless it was abandoned meanwhile.
func (c *Controller) wire(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.mode != ModeEdit {
		return
	}

	if _, err := c.charts.BindClickHandlers(ctx, c.onChartSelected); err != nil {
		c.logger.Warn("editor: bind chart clicks", "error", err)
	}
	if _, err := c.sections.Enable(ctx); err != nil {
		c.logger.Warn("editor: enable section handles", "error", err)
	}
	if _, err := c.charts.Discover(ctx); err != nil {
		c.logger.Warn("editor: discover charts", "error", err)
	}
	c.session.Handles = c.charts.Handles()
	c.session.Reorderable = c.sections.Enabled()
	c.notify(Notification{Type: NoteSession, Data: *c.session})
}

func (c *Controller) onChartSelected(d chart.Descriptor) {
	c.notify(Notification{Type: NoteChartSelected, Data: d})
}

// Disable leaves edit mode without saving; the live document keeps its
// edits. Handles, listeners and the edit stylesheet are removed.
func (c *Controller) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableLocked(ctx)
}

func (c *Controller) disableLocked(ctx context.Context) error {
	if c.mode != ModeEdit {
		return nil
	}
	err := c.surface.Call(ctx, "edit.disable", nil)
	if errors.Is(err, sandbox.ErrUnavailable) {
		c.logger.Warn("editor: sandbox unavailable on disable")
		err = nil
	}
	if err := c.sections.Disable(ctx); err != nil && !errors.Is(err, sandbox.ErrUnavailable) {
		c.logger.Warn("editor: disable section handles", "error", err)
	}

	c.gen++
	c.mode = ModeView
	c.session = nil
	c.toolbar.SetEditing(false)
	c.notify(Notification{Type: NoteMode, Data: ModeView})
	if err != nil {
		return fmt.Errorf("editor: disable: %w", err)
	}
	return nil
}

// Extract serializes the live document and current chart state into a
// standalone document. It never returns a partial document.
func (c *Controller) Extract(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extractLocked(ctx)
}

func (c *Controller) extractLocked(ctx context.Context) (string, error) {
	if c.doc == "" {
		return "", ErrNoDocument
	}
	var captured struct {
		HTML string `json:"html"`
	}
	if err := c.surface.Call(ctx, "capture", &captured); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtract, err)
	}
	if captured.HTML == "" {
		return "", fmt.Errorf("%w: %w: empty capture", ErrExtract, sandbox.ErrUnavailable)
	}
	configs, err := c.charts.Configs(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtract, err)
	}
	out, err := Flatten(captured.HTML, configs, c.logger)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtract, err)
	}
	return out, nil
}

// Saved is the result of Save.
type Saved struct {
	HTML     string `json:"-"`
	ReportID string `json:"report_id,omitempty"`
	FileName string `json:"file_name"`
	Bytes    int    `json:"bytes"`
}

// Save extracts the document, makes it the new last-known-good copy and
// leaves edit mode. On extraction failure nothing changes. A publish
// failure is returned after the document was replaced.
func (c *Controller) Save(ctx context.Context) (Saved, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeEdit {
		return Saved{}, ErrNotEditing
	}
	out, err := c.extractLocked(ctx)
	if err != nil {
		c.logger.Error("editor: save aborted, previous document kept", "error", err)
		return Saved{}, err
	}
	c.doc = out
	if err := c.disableLocked(ctx); err != nil {
		c.logger.Warn("editor: disable after save", "error", err)
	}

	saved := Saved{HTML: out, FileName: publish.FileName(c.name), Bytes: len(out)}
	c.notify(Notification{Type: NoteDocument, Data: map[string]any{"name": c.name, "bytes": len(out), "saved": true}})

	if c.cfg.Publisher != nil {
		rep := publish.Report{ID: idgen.Report(), Name: c.name, HTML: out, CreatedAt: time.Now().UTC()}
		if err := c.cfg.Publisher.Publish(ctx, rep); err != nil {
			return saved, fmt.Errorf("editor: publish: %w", err)
		}
		saved.ReportID = rep.ID
	}
	c.logger.Info("editor: saved", "bytes", len(out), "report", saved.ReportID)
	return saved, nil
}

// Cancel discards live edits by reloading the last-known-good document.
// It always succeeds: a failed reload only means the sandbox shows stale
// content, the committed document is untouched.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == "" {
		return ErrNoDocument
	}
	c.resetLocked()
	if err := c.surface.Load(ctx, c.doc); err != nil {
		c.logger.Warn("editor: reload on cancel failed", "error", err)
	}
	c.notify(Notification{Type: NoteMode, Data: ModeView})
	return nil
}

// Document returns the last-known-good document and its name.
func (c *Controller) Document() (name, document string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == "" {
		return "", "", ErrNoDocument
	}
	return c.name, c.doc, nil
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Session returns the active session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Subscribe returns a channel of notifications and a function that
// unsubscribes. Slow subscribers miss notifications rather than block.
func (c *Controller) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 32)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()
	return ch, func() {
		c.subMu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.subMu.Unlock()
	}
}

func (c *Controller) notify(n Notification) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
