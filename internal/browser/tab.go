package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is one blank page used as a rendering surface.
type Tab struct {
	Page    *rod.Page
	manager *Manager
	router  *rod.HijackRouter
}

// OpenTab creates a blank tab with stealth and resource blocking applied
// as configured.
func OpenTab(ctx context.Context, mgr *Manager) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, manager: mgr}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}
	return t, nil
}

// SetContent replaces the tab's document with html. Embedded scripts run
// as they would on a normal load; SetContent returns once load fired or the
// load timeout expired.
func (t *Tab) SetContent(ctx context.Context, html string) error {
	loadCtx, cancel := context.WithTimeout(ctx, t.manager.cfg.LoadTimeout)
	defer cancel()

	page := t.Page.Context(loadCtx)
	if err := page.SetDocumentContent(html); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "error", err)
	}
	return nil
}

// Eval runs a JS function expression and returns its string result.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
