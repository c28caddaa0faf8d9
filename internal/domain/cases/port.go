package cases

import (
	"context"
	"io"
)

// Repository port (the case store)
type Repository interface {
	Save(ctx context.Context, c *Case) error
	Get(ctx context.Context, id int64) (*Case, error)
}

// AttachmentStore opens the content behind an attachment handle.
type AttachmentStore interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}
