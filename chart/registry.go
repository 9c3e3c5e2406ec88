package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/reportedit/idgen"
	"github.com/hazyhaar/reportedit/sandbox"
)

// Handle locates a live chart inside the sandbox runtime.
type Handle struct {
	Key      string `json:"key"`
	CanvasID string `json:"canvas_id,omitempty"`
}

// liveChart is the shape returned by the runtime's charts.list.
type liveChart struct {
	Key      string    `json:"key"`
	CanvasID string    `json:"canvas_id"`
	ChartID  string    `json:"chart_id"`
	Type     Type      `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
	Title    string    `json:"title"`
}

// Registry maps descriptor ids to live chart handles. The map is filled
// by Discover and only trusted until the next document load.
type Registry struct {
	rt     sandbox.Runtime
	logger *slog.Logger

	mu       sync.Mutex
	handles  map[string]Handle
	tokens   map[string]string // runtime key -> generated id
	onSelect func(Descriptor)
}

// NewRegistry creates a Registry calling into rt.
func NewRegistry(rt sandbox.Runtime, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rt:      rt,
		logger:  logger,
		handles: make(map[string]Handle),
		tokens:  make(map[string]string),
	}
}

// Discover enumerates every live chart and returns normalized descriptors.
// The id is the canvas element id, else the chart's own id, else a token
// that does not survive a reload.
func (r *Registry) Discover(ctx context.Context) ([]Descriptor, error) {
	var live []liveChart
	if err := r.rt.Call(ctx, "charts.list", &live); err != nil {
		return nil, fmt.Errorf("chart: discover: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles = make(map[string]Handle, len(live))
	out := make([]Descriptor, 0, len(live))
	for _, c := range live {
		id := r.idLocked(c)
		r.handles[id] = Handle{Key: c.Key, CanvasID: c.CanvasID}
		out = append(out, Normalize(Descriptor{
			ID:       id,
			Type:     c.Type,
			Labels:   c.Labels,
			Datasets: c.Datasets,
			Title:    c.Title,
		}))
	}
	r.logger.Debug("chart: discovered", "count", len(out))
	return out, nil
}

func (r *Registry) idLocked(c liveChart) string {
	switch {
	case c.CanvasID != "":
		return c.CanvasID
	case c.ChartID != "":
		return c.ChartID
	}
	id, ok := r.tokens[c.Key]
	if !ok {
		id = idgen.ChartToken()
		r.tokens[c.Key] = id
	}
	return id
}

// Lookup returns the handle recorded for id by the last Discover.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// Handles returns a copy of the id -> handle map.
func (r *Registry) Handles() map[string]Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Handle, len(r.handles))
	for id, h := range r.handles {
		out[id] = h
	}
	return out
}

// Get returns the current descriptor of chart id.
func (r *Registry) Get(ctx context.Context, id string) (Descriptor, error) {
	all, err := r.Discover(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Update normalizes d and pushes it onto the live chart, which re-renders.
// Dataset objects are updated in place so styling the descriptor does not
// model (border width, tension, ...) survives.
func (r *Registry) Update(ctx context.Context, d Descriptor) (Descriptor, error) {
	if d.Type != "" && !d.Type.Valid() {
		return Descriptor{}, fmt.Errorf("chart: update: %w: %q", ErrType, d.Type)
	}
	d = Normalize(d)

	h, ok := r.Lookup(d.ID)
	if !ok {
		if _, err := r.Discover(ctx); err != nil {
			return Descriptor{}, err
		}
		if h, ok = r.Lookup(d.ID); !ok {
			return Descriptor{}, fmt.Errorf("chart: update: %w: %q", ErrNotFound, d.ID)
		}
	}

	var live liveChart
	if err := r.rt.Call(ctx, "charts.update", &live, h.Key, d); err != nil {
		return Descriptor{}, fmt.Errorf("chart: update %q: %w", d.ID, err)
	}
	r.logger.Debug("chart: updated", "id", d.ID, "labels", len(d.Labels), "datasets", len(d.Datasets))
	return d, nil
}

// BindClickHandlers attaches one click listener per chart surface. Clicks
// arrive as runtime events and are routed through HandleClick to onSelect.
func (r *Registry) BindClickHandlers(ctx context.Context, onSelect func(Descriptor)) (int, error) {
	r.mu.Lock()
	r.onSelect = onSelect
	r.mu.Unlock()

	var bound int
	if err := r.rt.Call(ctx, "charts.bindClicks", &bound); err != nil {
		return 0, fmt.Errorf("chart: bind clicks: %w", err)
	}
	return bound, nil
}

// HandleClick resolves a chart_click event payload to the clicked chart's
// descriptor and passes it to the bound callback.
func (r *Registry) HandleClick(ctx context.Context, payload json.RawMessage) (Descriptor, error) {
	var ev struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Descriptor{}, fmt.Errorf("chart: click payload: %w", err)
	}

	all, err := r.Discover(ctx)
	if err != nil {
		return Descriptor{}, err
	}

	r.mu.Lock()
	var id string
	for hid, h := range r.handles {
		if h.Key == ev.Key {
			id = hid
			break
		}
	}
	onSelect := r.onSelect
	r.mu.Unlock()

	for _, d := range all {
		if d.ID == id {
			if onSelect != nil {
				onSelect(d)
			}
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("chart: click: %w: key %q", ErrNotFound, ev.Key)
}

// Configs returns the serialized config of every live chart.
func (r *Registry) Configs(ctx context.Context) ([]LiveConfig, error) {
	var live []LiveConfig
	if err := r.rt.Call(ctx, "charts.configs", &live); err != nil {
		return nil, fmt.Errorf("chart: configs: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range live {
		live[i].ID = r.idLocked(liveChart{Key: live[i].Key, CanvasID: live[i].CanvasID, ChartID: chartIDFromKey(live[i].Key)})
	}
	return live, nil
}

// Reset forgets every handle, generated id and click callback.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]Handle)
	r.tokens = make(map[string]string)
	r.onSelect = nil
}

// chartIDFromKey recovers the chart id the runtime encodes as "#<id>" in
// keys of charts without a canvas id.
func chartIDFromKey(key string) string {
	if len(key) > 1 && key[0] == '#' {
		return key[1:]
	}
	return ""
}
