package editor

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/reportedit/chart"
	"github.com/hazyhaar/reportedit/internal/dom"
	"github.com/hazyhaar/reportedit/sections"
)

// Markers the runtime leaves in the live document while editing.
const (
	EditStyleID   = "edit-mode-styles"
	posMarkAttr   = "data-reportedit-pos"
	sectionIdxKey = "data-section-index"
)

// EditCSS is the stylesheet injected while editing: hover outlines, drag
// handles and drag states.
const EditCSS = `
[contenteditable="true"] *:hover {
  outline: 2px dashed rgba(59, 130, 246, 0.5) !important;
  outline-offset: 2px;
  cursor: text;
}
.section-drag-handle {
  position: absolute;
  left: -28px;
  top: 8px;
  width: 20px;
  height: 20px;
  cursor: grab;
  opacity: 0.5;
  z-index: 1000;
  font-size: 14px;
  line-height: 20px;
  text-align: center;
  color: #666;
  user-select: none;
}
.section-drag-handle:hover { opacity: 1; }
.dragging { opacity: 0.5; }
.drag-over { border-top: 3px solid #3b82f6 !important; }
canvas:hover {
  outline: 2px solid rgba(59, 130, 246, 0.8) !important;
  outline-offset: 4px;
  cursor: pointer !important;
}
`

// Flatten turns a captured live document plus the current chart configs
// into a standalone document: editor artifacts are stripped, each chart's
// constructor script gets its current config (or a new constructor script
// is appended), and the doctype is prefixed. The input is parsed into a
// detached tree; nothing live is touched.
func Flatten(captured string, charts []chart.LiveConfig, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := dom.Parse(captured)
	if err != nil {
		return "", err
	}

	stripArtifacts(doc)
	if err := embedCharts(doc, charts, logger); err != nil {
		return "", err
	}
	return dom.Render(doc)
}

func stripArtifacts(doc *html.Node) {
	dom.Remove(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			(dom.GetAttr(n, "id") == EditStyleID || dom.HasClass(n, sections.HandleClass))
	})

	for _, n := range dom.All(doc, func(n *html.Node) bool { return n.Type == html.ElementNode }) {
		dom.RemoveAttr(n, sectionIdxKey)
		dom.RemoveClass(n, "dragging")
		dom.RemoveClass(n, "drag-over")
		if dom.HasAttr(n, posMarkAttr) {
			dom.RemoveStyle(n, "position")
			dom.RemoveAttr(n, posMarkAttr)
		}
	}

	if body := dom.Body(doc); body != nil {
		dom.RemoveAttr(body, "contenteditable")
		dom.RemoveStyle(body, "outline")
	}
}

// inlineScripts returns the script elements without a src attribute, the
// only ones whose text can be rewritten.
func inlineScripts(doc *html.Node) []*html.Node {
	return dom.All(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Script && !dom.HasAttr(n, "src")
	})
}

func embedCharts(doc *html.Node, charts []chart.LiveConfig, logger *slog.Logger) error {
	scripts := inlineScripts(doc)
	claimed := make(map[*html.Node]map[int]bool)

	for _, c := range charts {
		if c.CanvasID == "" {
			logger.Warn("editor: chart has no surface id, not exported", "id", c.ID)
			continue
		}

		rewritten := false
		for _, s := range scripts {
			src := dom.Text(s)
			if !strings.Contains(src, "Chart") {
				continue
			}
			if claimed[s] == nil {
				claimed[s] = make(map[int]bool)
			}
			out, ord, ok, err := chart.RewriteConstructor(src, c.CanvasID, c.Config, claimed[s])
			if err != nil {
				return fmt.Errorf("editor: rewrite %q: %w", c.CanvasID, err)
			}
			if !ok {
				continue
			}
			dom.SetText(s, out)
			claimed[s][ord] = true
			rewritten = true
			break
		}
		if rewritten {
			continue
		}

		js, err := chart.ConstructorScript(c.CanvasID, c.Config)
		if err != nil {
			return fmt.Errorf("editor: constructor %q: %w", c.CanvasID, err)
		}
		parent := dom.Body(doc)
		if parent == nil {
			parent = doc
		}
		el := dom.NewElement(atom.Script)
		dom.SetText(el, js)
		parent.AppendChild(el)
		logger.Debug("editor: appended constructor script", "id", c.CanvasID)
	}
	return nil
}

// StaticCharts reads chart descriptors back from a standalone document.
// Only constructors with a JSON config, as written by Flatten, are
// readable. When several scripts build the same surface the last one wins.
func StaticCharts(document string) ([]chart.Descriptor, error) {
	doc, err := dom.Parse(document)
	if err != nil {
		return nil, err
	}

	var order []string
	byID := make(map[string]chart.Descriptor)
	for _, s := range inlineScripts(doc) {
		for _, lc := range chart.ScanConfigs(dom.Text(s)) {
			d, err := chart.DescriptorFromConfig(lc.ID, lc.Config)
			if err != nil {
				continue
			}
			if _, seen := byID[lc.ID]; !seen {
				order = append(order, lc.ID)
			}
			byID[lc.ID] = d
		}
	}

	out := make([]chart.Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}
