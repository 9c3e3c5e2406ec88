package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/reportedit/internal/browser"
)

// fakeChartDoc defines a minimal window.Chart with the instance registry
// and update hook the runtime relies on.
const fakeChartDoc = `<!DOCTYPE html><html><head></head><body>
<section><h2>Revenue</h2><canvas id="rev"></canvas></section>
<script>
window.Chart = function (el, cfg) {
	this.canvas = typeof el === "string" ? document.getElementById(el) : el;
	this.config = { type: cfg.type, options: cfg.options || {} };
	this.options = this.config.options;
	this.data = cfg.data;
	this.id = Chart._n++;
	this.updates = 0;
	Chart.instances[this.id] = this;
};
Chart.instances = {};
Chart._n = 0;
Chart.prototype.update = function () { this.updates++; };
</script>
<script>
new Chart(document.getElementById("rev"), {
	type: "bar",
	data: { labels: ["Jan", "Feb"], datasets: [{ label: "Sales", data: [10, 20], borderWidth: 2 }] },
	options: { plugins: { title: { display: true, text: "Revenue" } } }
});
</script>
</body></html>`

func startHost(t *testing.T) *Host {
	t.Helper()
	if os.Getenv("REPORTEDIT_CHROME") != "1" {
		t.Skip("set REPORTEDIT_CHROME=1 to run browser tests")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mgr := browser.NewManager(browser.Config{LoadTimeout: 10 * time.Second})
	if _, err := mgr.Start(ctx); err != nil {
		t.Fatalf("start browser: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	h := New(mgr, Config{})
	if err := h.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHost_ChartsRoundTrip(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()

	if err := h.Load(ctx, fakeChartDoc); err != nil {
		t.Fatalf("load: %v", err)
	}

	var list []struct {
		Key      string   `json:"key"`
		CanvasID string   `json:"canvas_id"`
		Type     string   `json:"type"`
		Labels   []string `json:"labels"`
		Title    string   `json:"title"`
	}
	if err := h.Call(ctx, "charts.list", &list); err != nil {
		t.Fatalf("charts.list: %v", err)
	}
	if len(list) != 1 || list[0].CanvasID != "rev" || list[0].Title != "Revenue" {
		t.Fatalf("unexpected charts: %+v", list)
	}

	desc := map[string]any{
		"type":   "bar",
		"labels": []string{"Jan", "February"},
		"datasets": []map[string]any{
			{"label": "Sales", "data": []float64{10, 25}},
		},
	}
	if err := h.Call(ctx, "charts.update", nil, "rev", desc); err != nil {
		t.Fatalf("charts.update: %v", err)
	}

	var configs []struct {
		CanvasID string `json:"canvas_id"`
		Config   struct {
			Data struct {
				Labels   []string `json:"labels"`
				Datasets []struct {
					Data        []float64 `json:"data"`
					BorderWidth int       `json:"borderWidth"`
				} `json:"datasets"`
			} `json:"data"`
		} `json:"config"`
	}
	if err := h.Call(ctx, "charts.configs", &configs); err != nil {
		t.Fatalf("charts.configs: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("captured %d charts", len(configs))
	}
	got := configs[0].Config.Data
	if got.Labels[1] != "February" || got.Datasets[0].Data[1] != 25 {
		t.Fatalf("update not reflected: %+v", got)
	}
	if got.Datasets[0].BorderWidth != 2 {
		t.Fatalf("unmodeled dataset property lost: %+v", got.Datasets[0])
	}
}

func TestHost_ChartClickEvent(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()

	if err := h.Load(ctx, fakeChartDoc); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.Call(ctx, "charts.bindClicks", nil); err != nil {
		t.Fatalf("bindClicks: %v", err)
	}
	if err := h.tab.Page.MustElement("#rev").Click("left", 1); err != nil {
		t.Fatalf("click: %v", err)
	}

	select {
	case ev := <-h.Events():
		if ev.Type != EventChartClick {
			t.Fatalf("event type: got %q", ev.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no chart_click event")
	}
}

func TestHost_UnavailableBeforeOpen(t *testing.T) {
	h := &Host{events: make(chan Event, 1)}
	if err := h.Call(context.Background(), "charts.list", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := h.Load(context.Background(), "<p>x</p>"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

const threeSectionDoc = `<!DOCTYPE html><html><head></head><body>
<section id="s0"><h2>S0</h2><p id="p0">Alpha text</p></section>
<section id="s1"><h2>S1</h2><p id="p1">Beta text</p></section>
<section id="s2"><h2>S2</h2><p id="p2">Gamma text</p></section>
</body></html>`

// evalString runs a JS function expression in the tab and returns its
// string result.
func evalString(t *testing.T, h *Host, js string, args ...any) string {
	t.Helper()
	out, err := h.tab.Eval(context.Background(), js, args...)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	return out
}

const sectionOrderJS = `() => Array.from(document.querySelectorAll("section h2")).map((h) => h.textContent).join(",")`

const selectJS = `(id) => {
	document.body.focus();
	const r = document.createRange();
	r.selectNodeContents(document.getElementById(id));
	const s = window.getSelection();
	s.removeAllRanges();
	s.addRange(r);
	return s.toString();
}`

func loadEditable(t *testing.T, h *Host) {
	t.Helper()
	ctx := context.Background()
	if err := h.Load(ctx, threeSectionDoc); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.Call(ctx, "edit.enable", nil, ".section-drag-handle{cursor:grab}"); err != nil {
		t.Fatalf("edit.enable: %v", err)
	}
}

func TestHost_SectionMoves(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()
	loadEditable(t, h)

	var n int
	if err := h.Call(ctx, "sections.enable", &n); err != nil || n != 3 {
		t.Fatalf("sections.enable: %d, %v", n, err)
	}

	// S0 dropped onto S2 lands after it.
	if err := h.Call(ctx, "sections.move", nil, 0, 2, "after"); err != nil {
		t.Fatalf("sections.move: %v", err)
	}
	if got := evalString(t, h, sectionOrderJS); got != "S1,S2,S0" {
		t.Fatalf("order after move: %s", got)
	}
	// Reattached handles follow the new order.
	if err := h.Call(ctx, "sections.enable", &n); err != nil {
		t.Fatal(err)
	}
	idx := evalString(t, h, `() => Array.from(document.querySelectorAll("section")).map((s) => s.querySelector(".section-drag-handle").dataset.sectionIndex + s.id).join(",")`)
	if idx != "0s1,1s2,2s0" {
		t.Fatalf("handle indices: %s", idx)
	}

	// The inverse move restores the original order.
	if err := h.Call(ctx, "sections.move", nil, 2, 0, "before"); err != nil {
		t.Fatalf("inverse move: %v", err)
	}
	if got := evalString(t, h, sectionOrderJS); got != "S0,S1,S2" {
		t.Fatalf("order after inverse move: %s", got)
	}

	if err := h.Call(ctx, "sections.move", nil, 1, 1, "after"); err == nil {
		t.Fatal("move onto itself accepted")
	}
}

func TestHost_BoldTwiceRestores(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()
	loadEditable(t, h)
	before := evalString(t, h, `() => document.getElementById("p1").innerHTML`)

	if sel := evalString(t, h, selectJS, "p1"); sel != "Beta text" {
		t.Fatalf("selection: %q", sel)
	}
	var st struct {
		Applied bool `json:"applied"`
		Bold    bool `json:"bold"`
	}
	if err := h.Call(ctx, "format.exec", &st, "bold", nil); err != nil {
		t.Fatal(err)
	}
	if !st.Applied || !st.Bold {
		t.Fatalf("first bold: %+v", st)
	}
	if err := h.Call(ctx, "format.exec", &st, "bold", nil); err != nil {
		t.Fatal(err)
	}
	if !st.Applied || st.Bold {
		t.Fatalf("second bold: %+v", st)
	}
	after := evalString(t, h, `() => document.getElementById("p1").innerHTML`)
	if after != before {
		t.Fatalf("bold twice changed markup: %q -> %q", before, after)
	}
}

func TestHost_FormatNeedsSelection(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()
	loadEditable(t, h)
	evalString(t, h, `() => { window.getSelection().removeAllRanges(); return ""; }`)

	var st struct {
		Applied bool `json:"applied"`
	}
	if err := h.Call(ctx, "format.exec", &st, "bold", nil); err != nil {
		t.Fatal(err)
	}
	if st.Applied {
		t.Fatal("format applied without a selection")
	}
}

func TestHost_FontSizeInPixels(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()
	loadEditable(t, h)
	evalString(t, h, selectJS, "p2")

	var st struct {
		Applied bool `json:"applied"`
	}
	if err := h.Call(ctx, "format.fontSize", &st, 18); err != nil {
		t.Fatal(err)
	}
	if !st.Applied {
		t.Fatal("font size not applied")
	}
	got := evalString(t, h, `() => {
		const el = document.querySelector("#p2 [style*='font-size']");
		return (el ? el.style.fontSize : "none") + "|" + document.querySelectorAll("font[size]").length;
	}`)
	if got != "18px|0" {
		t.Fatalf("font size markup: %s", got)
	}
}

func TestHost_CaptureAfterDisableIsClean(t *testing.T) {
	h := startHost(t)
	ctx := context.Background()
	loadEditable(t, h)
	if err := h.Call(ctx, "sections.enable", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Call(ctx, "edit.disable", nil); err != nil {
		t.Fatal(err)
	}

	var captured struct {
		HTML string `json:"html"`
	}
	if err := h.Call(ctx, "capture", &captured); err != nil {
		t.Fatal(err)
	}
	for _, leftover := range []string{"section-drag-handle", "contenteditable", "edit-mode-styles", "data-section-index", "data-reportedit-pos"} {
		if strings.Contains(captured.HTML, leftover) {
			t.Errorf("capture still holds %q:\n%s", leftover, captured.HTML)
		}
	}
	if !strings.Contains(captured.HTML, "Gamma text") {
		t.Fatal("capture lost content")
	}
}
