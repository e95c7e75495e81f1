package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

// Dir writes each chart to <path>/dockerstats-<unix>.png.
type Dir struct {
	path string
	now  func() time.Time
}

// NewDir creates a directory sink rooted at path.
func NewDir(path string) *Dir {
	return &Dir{path: path, now: time.Now}
}

func (d *Dir) Deliver(ctx context.Context, image []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrDeliver,
			fmt.Sprintf("Cannot create output directory %s", d.path), "")
	}

	name := filepath.Join(d.path, fmt.Sprintf("dockerstats-%d.png", d.now().Unix()))
	if err := os.WriteFile(name, image, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrDeliver,
			fmt.Sprintf("Cannot write chart to %s", name), "")
	}
	return nil
}
