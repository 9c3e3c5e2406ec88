// Package sections reorders the top-level blocks of a report document,
// live through the sandbox runtime or on a parsed document.
package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/reportedit/sandbox"
)

// ErrMove is returned for a move with equal or out-of-range indices.
var ErrMove = errors.New("sections: invalid move")

// Placement says where the moved section lands relative to the target.
type Placement string

const (
	After  Placement = "after"
	Before Placement = "before"
)

// Move relocates the section currently at From next to the section
// currently at To. It is a positional move, not a swap.
type Move struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	Placement Placement `json:"placement"`
}

// Plan validates a drop of section from onto section to among count
// sections. Dragging downwards lands after the target, upwards before it.
func Plan(from, to, count int) (Move, error) {
	if from == to || from < 0 || to < 0 || from >= count || to >= count {
		return Move{}, fmt.Errorf("%w: %d -> %d of %d", ErrMove, from, to, count)
	}
	p := Before
	if from < to {
		p = After
	}
	return Move{From: from, To: to, Placement: p}, nil
}

// Order applies m to a list of positions and returns the new order. It is
// the reference semantics both live and static moves follow.
func Order[T any](items []T, m Move) []T {
	out := make([]T, 0, len(items))
	node := items[m.From]
	for i, it := range items {
		if i == m.From {
			continue
		}
		if i == m.To && m.Placement == Before {
			out = append(out, node)
		}
		out = append(out, it)
		if i == m.To && m.Placement == After {
			out = append(out, node)
		}
	}
	return out
}

// Summary describes a detected section.
type Summary struct {
	Index   int    `json:"index"`
	Tag     string `json:"tag"`
	Heading string `json:"heading,omitempty"`
}

// Controller drives the live reorder affordances.
type Controller struct {
	rt     sandbox.Runtime
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
}

// NewController creates a Controller calling into rt.
func NewController(rt sandbox.Runtime, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{rt: rt, logger: logger}
}

// Detect returns the sections of the live document in current order.
func (c *Controller) Detect(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := c.rt.Call(ctx, "sections.list", &out); err != nil {
		return nil, fmt.Errorf("sections: detect: %w", err)
	}
	return out, nil
}

// Enable inserts one drag handle per section, tagged with its index.
func (c *Controller) Enable(ctx context.Context) (int, error) {
	var n int
	if err := c.rt.Call(ctx, "sections.enable", &n); err != nil {
		return 0, fmt.Errorf("sections: enable: %w", err)
	}
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
	c.logger.Debug("sections: handles attached", "count", n)
	return n, nil
}

// Disable removes every handle, including orphans, and the drag listeners.
func (c *Controller) Disable(ctx context.Context) error {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
	if err := c.rt.Call(ctx, "sections.disable", nil); err != nil {
		return fmt.Errorf("sections: disable: %w", err)
	}
	return nil
}

// Move applies a drop of section from onto section to. When handles are
// attached they are removed and reattached so indices match the new order.
func (c *Controller) Move(ctx context.Context, from, to int) (Move, error) {
	list, err := c.Detect(ctx)
	if err != nil {
		return Move{}, err
	}
	m, err := Plan(from, to, len(list))
	if err != nil {
		return Move{}, err
	}
	if err := c.rt.Call(ctx, "sections.move", nil, m.From, m.To, string(m.Placement)); err != nil {
		return Move{}, fmt.Errorf("sections: move: %w", err)
	}

	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if enabled {
		if err := c.Disable(ctx); err != nil {
			return m, err
		}
		if _, err := c.Enable(ctx); err != nil {
			return m, err
		}
	}
	c.logger.Info("sections: moved", "from", m.From, "to", m.To, "placement", m.Placement)
	return m, nil
}

// OnDrop handles a section_drop runtime event.
func (c *Controller) OnDrop(ctx context.Context, payload json.RawMessage) (Move, error) {
	var ev struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Move{}, fmt.Errorf("sections: drop payload: %w", err)
	}
	return c.Move(ctx, ev.From, ev.To)
}

// Enabled reports whether handles are attached.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}
