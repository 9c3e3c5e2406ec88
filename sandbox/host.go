package sandbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/reportedit/internal/browser"
)

//go:embed runtime.js
var runtimeJS string

const bindingName = "__reportedit_binding"

// callJS resolves a dotted runtime function and wraps its result in the
// envelope decoded by decodeEnvelope.
const callJS = `(fn, args) => {
	const rt = window.__reportedit;
	if (!rt) {
		return JSON.stringify({ok: false, error_code: "RUNTIME_MISSING", error_message: "editor runtime not installed"});
	}
	const f = fn.split(".").reduce((o, k) => (o == null ? undefined : o[k]), rt);
	if (typeof f !== "function") {
		return JSON.stringify({ok: false, error_code: "UNKNOWN_FUNCTION", error_message: fn});
	}
	try {
		const data = f.apply(null, args || []);
		return JSON.stringify({ok: true, data: data === undefined ? null : data});
	} catch (e) {
		return JSON.stringify({ok: false, error_code: "EVAL_ERROR", error_message: String((e && e.message) || e)});
	}
}`

// Config configures a Host.
type Config struct {
	// EventBuffer is the capacity of the Events channel. Default: 64.
	EventBuffer int
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Host owns one browser tab and the document loaded into it.
type Host struct {
	mgr    *browser.Manager
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	tab    *browser.Tab
	html   string
	stop   context.CancelFunc
	events chan Event
}

// New creates a Host on top of a started browser manager. Call Open before use.
func New(mgr *browser.Manager, cfg Config) *Host {
	cfg.defaults()
	h := &Host{
		mgr:    mgr,
		cfg:    cfg,
		logger: cfg.Logger,
		events: make(chan Event, cfg.EventBuffer),
	}
	mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: h.detach,
		AfterRecycle: func(*rod.Browser) {
			// The manager lock is held while callbacks run.
			go h.reopen()
		},
	})
	return h
}

// Open creates the tab and installs the runtime binding.
func (h *Host) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.openLocked(ctx)
}

func (h *Host) openLocked(ctx context.Context) error {
	tab, err := browser.OpenTab(ctx, h.mgr)
	if err != nil {
		return fmt.Errorf("sandbox: open: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(tab.Page); err != nil {
		tab.Close()
		return fmt.Errorf("sandbox: add binding: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	h.tab = tab
	h.stop = cancel
	go h.listen(listenCtx, tab.Page)

	h.logger.Info("sandbox: tab opened")
	return nil
}

// Load replaces the whole document with html. Embedded scripts run again,
// so charts are reconstructed from the document's own code.
func (h *Host) Load(ctx context.Context, html string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tab == nil {
		return fmt.Errorf("sandbox: load: %w", ErrUnavailable)
	}
	if err := h.tab.SetContent(ctx, html); err != nil {
		return fmt.Errorf("sandbox: load: %w: %v", ErrUnavailable, err)
	}
	if _, err := h.tab.Eval(ctx, runtimeJS); err != nil {
		return fmt.Errorf("sandbox: inject runtime: %w: %v", ErrUnavailable, err)
	}
	h.html = html
	h.logger.Debug("sandbox: document loaded", "bytes", len(html))
	return nil
}

// Call implements Runtime.
func (h *Host) Call(ctx context.Context, fn string, out any, args ...any) error {
	h.mu.Lock()
	tab := h.tab
	h.mu.Unlock()

	if tab == nil {
		return fmt.Errorf("sandbox: %s: %w", fn, ErrUnavailable)
	}
	if args == nil {
		args = []any{}
	}
	raw, err := tab.Eval(ctx, callJS, fn, args)
	if err != nil {
		return fmt.Errorf("sandbox: %s: %w: %v", fn, ErrUnavailable, err)
	}
	return decodeEnvelope(fn, raw, out)
}

// Events returns the runtime event stream. It is never closed while the
// Host is open.
func (h *Host) Events() <-chan Event {
	return h.events
}

// Close closes the tab.
func (h *Host) Close() error {
	h.detach()
	return nil
}

func (h *Host) detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	if h.tab != nil {
		h.tab.Close()
		h.tab = nil
	}
}

// reopen restores the sandbox after a browser relaunch: new tab, last
// document reloaded, reset event raised so the editor drops stale handles.
func (h *Host) reopen() {
	ctx := context.Background()
	h.mu.Lock()
	err := h.openLocked(ctx)
	html := h.html
	h.mu.Unlock()
	if err != nil {
		h.logger.Error("sandbox: reopen after recycle", "error", err)
		return
	}
	if html != "" {
		if err := h.Load(ctx, html); err != nil {
			h.logger.Error("sandbox: reload after recycle", "error", err)
			return
		}
	}
	h.emit(Event{Type: EventReset})
}

// listen receives runtime events via Runtime.bindingCalled.
func (h *Host) listen(ctx context.Context, page *rod.Page) {
	page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var ev Event
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			h.logger.Warn("sandbox: parse binding payload", "error", err)
			return
		}
		h.emit(ev)
	})()
}

func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("sandbox: event dropped, buffer full", "type", ev.Type)
	}
}
