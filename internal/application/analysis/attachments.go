package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
)

const (
	DefaultMaxAttachments     = 8
	DefaultMaxAttachmentBytes = 20 << 20
)

// AttachmentLoader reads the images behind a case's attachment handles.
type AttachmentLoader struct {
	Store    cases.AttachmentStore
	MaxCount int
	MaxBytes int64
	Log      *slog.Logger
}

func NewAttachmentLoader(store cases.AttachmentStore, log *slog.Logger) *AttachmentLoader {
	if log == nil {
		log = slog.Default()
	}
	return &AttachmentLoader{
		Store:    store,
		MaxCount: DefaultMaxAttachments,
		MaxBytes: DefaultMaxAttachmentBytes,
		Log:      log,
	}
}

// Load reads up to MaxCount attachments, in handle order. Handles whose
// content no longer exists are skipped with a warning.
func (l *AttachmentLoader) Load(ctx context.Context, handles []string) ([]domain.Attachment, error) {
	if l == nil || len(handles) == 0 {
		return nil, nil
	}
	if l.Store == nil {
		l.Log.Warn("case has attachments but no attachment store is configured", "count", len(handles))
		return nil, nil
	}
	if l.MaxCount > 0 && len(handles) > l.MaxCount {
		l.Log.Warn("too many attachments, extra ones are not sent", "count", len(handles), "max", l.MaxCount)
		handles = handles[:l.MaxCount]
	}

	slots := make([]*domain.Attachment, len(handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		g.Go(func() error {
			a, err := l.read(gctx, h)
			if errors.Is(err, fs.ErrNotExist) {
				l.Log.Warn("attachment missing, skipping", "handle", h)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load attachment %q: %w", h, err)
			}
			slots[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Attachment, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (l *AttachmentLoader) read(ctx context.Context, handle string) (*domain.Attachment, error) {
	rc, err := l.Store.Open(ctx, handle)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if l.MaxBytes > 0 {
		r = io.LimitReader(rc, l.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", l.MaxBytes)
	}

	name := path.Base(strings.ReplaceAll(handle, "\\", "/"))
	return &domain.Attachment{
		Name:        name,
		ContentType: contentType(name, data),
		Data:        data,
	}, nil
}

func contentType(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".dcm" || ext == ".dicom" {
		return "application/dicom"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
