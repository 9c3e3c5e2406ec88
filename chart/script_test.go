package chart

import (
	"encoding/json"
	"strings"
	"testing"
)

var revenueCfg = Config{
	Type: "bar",
	Data: json.RawMessage(`{"labels":["Jan","February"],"datasets":[{"label":"Sales","data":[10,25]}]}`),
}

func TestParseConstructors_Nested(t *testing.T) {
	src := `
// new Chart(commented, {})
const s = "new Chart(inString)";
const t = ` + "`tpl ${ fn({a: '}'}) } new Chart(x)`" + `;
new Chart(document.getElementById('rev'), {
  type: 'bar',
  data: { labels: ['a,b', "c)"], datasets: [{ data: [1, 2] }] },
  options: { plugins: { tooltip: { callbacks: { label: (c) => { return c.raw + ')'; } } } } }
});
`
	calls := ParseConstructors(src)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	c := calls[0]
	if len(c.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(c.Args))
	}
	if got := src[c.Args[0].Start:c.Args[0].End]; got != "document.getElementById('rev')" {
		t.Errorf("arg 0: %q", got)
	}
	arg1 := src[c.Args[1].Start:c.Args[1].End]
	if !strings.HasPrefix(arg1, "{") || !strings.HasSuffix(arg1, "}") {
		t.Errorf("arg 1 not the whole object: %q", arg1)
	}
	if src[c.Close] != ')' || !strings.HasPrefix(src[c.Call.Start:], "new Chart(") {
		t.Error("call span misaligned")
	}
}

func TestRewriteConstructor_ByDirectID(t *testing.T) {
	src := `var other = 1;
new Chart(document.getElementById("cost"), {type: "line", data: {}});
new Chart(document.getElementById("rev"), {type: "bar", data: {labels: ["Jan", "Feb"]}});
console.log("done");`

	out, ord, ok, err := RewriteConstructor(src, "rev", revenueCfg, nil)
	if err != nil || !ok {
		t.Fatalf("rewrite: ok=%v err=%v", ok, err)
	}
	if ord != 1 {
		t.Errorf("ordinal: got %d, want 1", ord)
	}
	if !strings.Contains(out, `{type: "line", data: {}}`) {
		t.Error("other chart's config was touched")
	}
	if !strings.Contains(out, `"February"`) || strings.Contains(out, `"Feb"]`) {
		t.Errorf("config not replaced: %s", out)
	}
	if !strings.HasPrefix(out, "var other = 1;") || !strings.HasSuffix(out, `console.log("done");`) {
		t.Error("surrounding script not preserved")
	}
}

func TestRewriteConstructor_ViaDeclaration(t *testing.T) {
	src := `const canvas = document.getElementById('rev');
const ctx = canvas.getContext('2d');
const chart = new Chart(ctx, config);`

	out, _, ok, err := RewriteConstructor(src, "rev", revenueCfg, nil)
	if err != nil || !ok {
		t.Fatalf("rewrite: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(out, `new Chart(ctx, {"type":"bar"`) {
		t.Fatalf("unexpected rewrite: %s", out)
	}
}

func TestRewriteConstructor_SingleArg(t *testing.T) {
	src := `new Chart("rev");`
	out, _, ok, _ := RewriteConstructor(src, "rev", revenueCfg, nil)
	if !ok || !strings.HasPrefix(out, `new Chart("rev", {"type":"bar"`) {
		t.Fatalf("unexpected rewrite: %s", out)
	}
}

func TestRewriteConstructor_NoMatch(t *testing.T) {
	src := `new Chart(document.getElementById("cost"), {});`
	if _, _, ok, _ := RewriteConstructor(src, "rev", revenueCfg, nil); ok {
		t.Fatal("unrelated script matched")
	}
}

func TestRewriteConstructor_Claimed(t *testing.T) {
	src := `new Chart("rev", {}); new Chart("rev", {});`
	claimed := map[int]bool{0: true}
	_, ord, ok, _ := RewriteConstructor(src, "rev", revenueCfg, claimed)
	if !ok || ord != 1 {
		t.Fatalf("expected second call, got ok=%v ord=%d", ok, ord)
	}
}

func TestConfigLiteral_ScriptSafe(t *testing.T) {
	cfg := Config{Type: "bar", Data: json.RawMessage(`{"labels":["</script><b>"]}`)}
	lit, err := configLiteral(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(lit, "</script>") {
		t.Fatalf("literal can close the script element: %s", lit)
	}
}

func TestConstructorScript_ScanConfigs(t *testing.T) {
	js, err := ConstructorScript("rev", revenueCfg)
	if err != nil {
		t.Fatal(err)
	}
	got := ScanConfigs(js)
	if len(got) != 1 || got[0].ID != "rev" {
		t.Fatalf("ScanConfigs: %+v", got)
	}
	d, err := DescriptorFromConfig(got[0].ID, got[0].Config)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(d.Labels, []string{"Jan", "February"}) || !equalFloats(d.Datasets[0].Data, []float64{10, 25}) {
		t.Fatalf("descriptor: %+v", d)
	}
}

func TestDescriptorFromConfig_FlexibleValues(t *testing.T) {
	cfg := Config{
		Type:    "line",
		Data:    json.RawMessage(`{"labels":[2024,["Q","2"]],"datasets":[{"label":"x","data":["3.5",{"x":1,"y":7},null]}]}`),
		Options: json.RawMessage(`{"plugins":{"title":{"text":"Growth"}}}`),
	}
	d, err := DescriptorFromConfig("g", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(d.Labels, []string{"2024", "Q 2"}) {
		t.Errorf("labels: %v", d.Labels)
	}
	if !equalFloats(d.Datasets[0].Data, []float64{3.5, 7}) {
		t.Errorf("data: %v", d.Datasets[0].Data)
	}
	if d.Title != "Growth" {
		t.Errorf("title: %q", d.Title)
	}
}
