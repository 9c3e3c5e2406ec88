package editor

import (
	"fmt"

	"github.com/hazyhaar/reportedit/internal/dom"
	"github.com/hazyhaar/reportedit/sections"
	"github.com/hazyhaar/reportedit/theme"
)

// Edits are the changes Transform applies to a document without a sandbox.
type Edits struct {
	// Moves are drops (from, to), applied in order against the current
	// section order.
	Moves []sections.Move  `json:"moves,omitempty" yaml:"moves"`
	Theme theme.Overrides `json:"theme,omitempty" yaml:"theme"`
}

// Transform applies section moves and theme overrides to a standalone
// document. Charts are left untouched: their state only exists once the
// document's scripts ran.
func Transform(document string, e Edits) (string, error) {
	doc, err := dom.Parse(document)
	if err != nil {
		return "", err
	}
	for i, m := range e.Moves {
		planned, err := sections.Plan(m.From, m.To, len(sections.DetectNodes(doc)))
		if err != nil {
			return "", fmt.Errorf("editor: move %d: %w", i, err)
		}
		if err := sections.Apply(doc, planned); err != nil {
			return "", fmt.Errorf("editor: move %d: %w", i, err)
		}
	}
	if err := theme.ApplyStatic(doc, e.Theme); err != nil {
		return "", err
	}
	return dom.Render(doc)
}
