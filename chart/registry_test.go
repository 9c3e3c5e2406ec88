package chart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/reportedit/sandbox"
	"github.com/hazyhaar/reportedit/sandbox/sandboxtest"
)

func liveSurface() *sandboxtest.Surface {
	s := sandboxtest.New()
	s.Handle("charts.list", func([]any) (any, error) {
		return []map[string]any{
			{
				"key": "rev", "canvas_id": "rev", "chart_id": "0", "type": "bar",
				"labels":   []string{"Jan", "Feb", "Mar"},
				"datasets": []map[string]any{{"label": "Sales", "data": []float64{10, 20}, "backgroundColor": "#3b82f6"}},
				"title":    "Revenue",
			},
			{"key": "#1", "chart_id": "1", "type": "pie", "labels": []string{"a"}, "datasets": []any{}},
			{"key": "~1", "type": "line", "labels": []string{}, "datasets": []any{}},
		}, nil
	})
	return s
}

func TestDiscover_IDsAndNormalize(t *testing.T) {
	r := NewRegistry(liveSurface(), nil)
	got, err := r.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d charts", len(got))
	}
	if got[0].ID != "rev" || got[1].ID != "1" {
		t.Errorf("ids: %q %q", got[0].ID, got[1].ID)
	}
	if !strings.HasPrefix(got[2].ID, "chart_") {
		t.Errorf("token id: %q", got[2].ID)
	}
	if !equalFloats(got[0].Datasets[0].Data, []float64{10, 20, 0}) {
		t.Errorf("not normalized: %v", got[0].Datasets[0].Data)
	}

	again, _ := r.Discover(context.Background())
	if again[2].ID != got[2].ID {
		t.Error("token id changed between discoveries")
	}
	r.Reset()
	fresh, _ := r.Discover(context.Background())
	if fresh[2].ID == got[2].ID {
		t.Error("token id survived Reset")
	}
}

func TestUpdate_PushesNormalized(t *testing.T) {
	s := liveSurface()
	var sent []any
	s.Handle("charts.update", func(args []any) (any, error) {
		sent = args
		return map[string]any{}, nil
	})
	r := NewRegistry(s, nil)

	d := Descriptor{
		ID:       "rev",
		Type:     Bar,
		Labels:   []string{"Jan", "February"},
		Datasets: []Dataset{{Label: "Sales", Data: []float64{10, 25, 99}}},
	}
	out, err := r.Update(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Consistent() {
		t.Fatalf("update returned ragged descriptor: %+v", out)
	}
	if len(sent) != 2 || sent[0] != "rev" {
		t.Fatalf("update args: %v", sent)
	}
	pushed, _ := json.Marshal(sent[1])
	var back Descriptor
	json.Unmarshal(pushed, &back)
	if !equalFloats(back.Datasets[0].Data, []float64{10, 25}) {
		t.Fatalf("pushed data: %v", back.Datasets[0].Data)
	}
	if !strings.Contains(string(pushed), `"backgroundColor":null`) {
		t.Errorf("unset color should be pushed as null: %s", pushed)
	}
}

func TestUpdate_Errors(t *testing.T) {
	r := NewRegistry(liveSurface(), nil)
	ctx := context.Background()

	if _, err := r.Update(ctx, Descriptor{ID: "nope", Type: Bar}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Update(ctx, Descriptor{ID: "rev", Type: "scatter3d"}); !errors.Is(err, ErrType) {
		t.Errorf("expected ErrType, got %v", err)
	}

	down := sandboxtest.New()
	down.SetUnavailable(true)
	if _, err := NewRegistry(down, nil).Discover(ctx); !errors.Is(err, sandbox.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestHandleClick(t *testing.T) {
	r := NewRegistry(liveSurface(), nil)
	ctx := context.Background()

	var selected Descriptor
	if _, err := r.BindClickHandlers(ctx, func(d Descriptor) { selected = d }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.HandleClick(ctx, json.RawMessage(`{"key":"#1"}`)); err != nil {
		t.Fatal(err)
	}
	if selected.ID != "1" || selected.Type != Pie {
		t.Fatalf("selected: %+v", selected)
	}
	if _, err := r.HandleClick(ctx, json.RawMessage(`{"key":"gone"}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigs_ResolvesIDs(t *testing.T) {
	s := liveSurface()
	s.Handle("charts.configs", func([]any) (any, error) {
		return []map[string]any{
			{"key": "rev", "canvas_id": "rev", "config": map[string]any{"type": "bar", "data": map[string]any{}}},
			{"key": "#4", "config": map[string]any{"type": "pie", "data": map[string]any{}}},
		}, nil
	})
	got, err := NewRegistry(s, nil).Configs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "rev" || got[1].ID != "4" || got[1].CanvasID != "" {
		t.Fatalf("configs: %+v", got)
	}
}
