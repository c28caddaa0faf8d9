package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
)

// ErrNoBlobStore is returned for minio:// handles when MinIO is disabled.
var ErrNoBlobStore = errors.New("attachment references object storage but none is configured")

// Resolver routes each handle to MinIO or the local file system by prefix.
type Resolver struct {
	Blob  cases.AttachmentStore
	Local cases.AttachmentStore
}

var _ cases.AttachmentStore = (*Resolver)(nil)

func (r *Resolver) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if strings.HasPrefix(handle, MinioScheme) {
		if r.Blob == nil {
			return nil, ErrNoBlobStore
		}
		return r.Blob.Open(ctx, handle)
	}
	if r.Local == nil {
		return nil, errors.New("local attachments are not configured")
	}
	return r.Local.Open(ctx, handle)
}
