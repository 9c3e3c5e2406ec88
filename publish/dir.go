package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/hazyhaar/reportedit/horosafe"
)

// Dir writes every report into a directory as <id>.html.
type Dir struct {
	root string
}

// NewDir creates the directory sink, creating root when needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("publish: dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Publish(ctx context.Context, r Report) error {
	if err := horosafe.ValidateIdentifier(r.ID); err != nil {
		return fmt.Errorf("publish: dir: %w", err)
	}
	path, err := horosafe.SafePath(d.root, r.ID+".html")
	if err != nil {
		return fmt.Errorf("publish: dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.HTML), 0o644); err != nil {
		return fmt.Errorf("publish: dir: write: %w", err)
	}
	return nil
}

func (d *Dir) Close() error { return nil }
