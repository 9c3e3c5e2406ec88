// Package sandbox hosts the report document being edited in an isolated
// browser tab and bridges Go callers to the editor runtime injected into it.
//
// Nothing outside this package touches the document directly: callers go
// through Runtime.Call, which evaluates a named runtime function inside the
// tab and decodes its JSON envelope.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the tab or its document cannot be reached:
// no tab, a closed tab, a failed evaluation or a missing runtime.
var ErrUnavailable = errors.New("sandbox: unavailable")

// Event types raised by the runtime through the binding.
const (
	EventChartClick  = "chart_click"
	EventSectionDrop = "section_drop"
	EventSelection   = "selection"
	// EventReset is raised by the host itself after the browser was
	// relaunched and the last document reloaded.
	EventReset = "reset"
)

// Event is one message from the runtime.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Runtime calls functions of the injected editor runtime. fn is a dotted
// name such as "charts.list"; the returned data is JSON-decoded into out
// (which may be nil).
type Runtime interface {
	Call(ctx context.Context, fn string, out any, args ...any) error
}

// Surface is a Runtime that can also be (re)loaded with a whole document.
type Surface interface {
	Runtime
	Load(ctx context.Context, html string) error
	Events() <-chan Event
}

// RuntimeError is a failure reported by the runtime itself (bad arguments,
// a thrown exception). It is distinct from ErrUnavailable.
type RuntimeError struct {
	Fn      string
	Code    string
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("sandbox: %s: %s: %s", e.Fn, e.Code, e.Message)
}

// envelope is the JSON shape every runtime call returns.
type envelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data"`
	ErrorCode    string          `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

const codeRuntimeMissing = "RUNTIME_MISSING"

// decodeEnvelope turns a raw envelope string into out or an error.
func decodeEnvelope(fn, raw string, out any) error {
	if raw == "" {
		return fmt.Errorf("sandbox: %s: empty result: %w", fn, ErrUnavailable)
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("sandbox: %s: decode envelope: %w", fn, err)
	}
	if !env.OK {
		if env.ErrorCode == codeRuntimeMissing {
			return fmt.Errorf("sandbox: %s: %w", fn, ErrUnavailable)
		}
		return &RuntimeError{Fn: fn, Code: env.ErrorCode, Message: env.ErrorMessage}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("sandbox: %s: decode data: %w", fn, err)
	}
	return nil
}
