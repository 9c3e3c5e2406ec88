// Package sandboxtest provides an in-memory sandbox.Surface for tests of
// packages that drive the editor runtime.
package sandboxtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hazyhaar/reportedit/sandbox"
)

// Handler answers one runtime function. args are the JSON-decoded call
// arguments, as the runtime would see them.
type Handler func(args []any) (any, error)

// Call records one runtime call.
type Call struct {
	Fn   string
	Args []any
}

// Surface is a scripted sandbox.Surface.
type Surface struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
	loaded   []string
	down     bool
	events   chan sandbox.Event

	// OnLoad runs on every successful Load.
	OnLoad func(html string)
}

// New returns an empty Surface. Unhandled functions return nil data.
func New() *Surface {
	return &Surface{
		handlers: make(map[string]Handler),
		events:   make(chan sandbox.Event, 64),
	}
}

// Handle registers h for fn.
func (s *Surface) Handle(fn string, h Handler) {
	s.mu.Lock()
	s.handlers[fn] = h
	s.mu.Unlock()
}

// SetUnavailable makes every call fail with sandbox.ErrUnavailable.
func (s *Surface) SetUnavailable(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Call implements sandbox.Runtime. Arguments and results go through JSON so
// tests see the same shapes as the browser runtime.
func (s *Surface) Call(ctx context.Context, fn string, out any, args ...any) error {
	wire, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("sandboxtest: %s: marshal args: %w", fn, err)
	}
	var decoded []any
	json.Unmarshal(wire, &decoded)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Fn: fn, Args: decoded})
	down := s.down
	h := s.handlers[fn]
	s.mu.Unlock()

	if down {
		return fmt.Errorf("sandboxtest: %s: %w", fn, sandbox.ErrUnavailable)
	}
	if h == nil {
		return nil
	}
	res, err := h(decoded)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("sandboxtest: %s: marshal result: %w", fn, err)
	}
	return json.Unmarshal(data, out)
}

// Load implements sandbox.Surface.
func (s *Surface) Load(ctx context.Context, html string) error {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return fmt.Errorf("sandboxtest: load: %w", sandbox.ErrUnavailable)
	}
	s.loaded = append(s.loaded, html)
	hook := s.OnLoad
	s.mu.Unlock()
	if hook != nil {
		hook(html)
	}
	return nil
}

// Events implements sandbox.Surface.
func (s *Surface) Events() <-chan sandbox.Event {
	return s.events
}

// Emit queues a runtime event.
func (s *Surface) Emit(typ string, payload any) {
	raw, _ := json.Marshal(payload)
	s.events <- sandbox.Event{Type: typ, Payload: raw}
}

// Calls returns the calls recorded so far.
func (s *Surface) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Called reports how many times fn was called.
func (s *Surface) Called(fn string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Fn == fn {
			n++
		}
	}
	return n
}

// Loaded returns every document passed to Load.
func (s *Surface) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loaded...)
}

var _ sandbox.Surface = (*Surface)(nil)
