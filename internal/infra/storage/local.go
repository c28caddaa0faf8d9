package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore opens attachment handles that are plain file paths. Relative
// paths resolve against Root.
type LocalStore struct {
	Root string
}

func NewLocal(root string) *LocalStore { return &LocalStore{Root: root} }

func (s *LocalStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.FromSlash(strings.TrimPrefix(handle, "file://"))
	if !filepath.IsAbs(p) {
		clean := filepath.Clean(p)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("attachment %q escapes the upload directory", handle)
		}
		p = filepath.Join(s.Root, clean)
	}
	// os.Open errors wrap fs.ErrNotExist for missing files.
	return os.Open(p)
}
