package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentLoader(t *testing.T) {
	store := memStore{
		"a.png":           []byte("png"),
		"dir/b.dcm":       []byte("DICM"),
		`c:\scans\c.jpeg`: []byte("jpeg"),
		"big.gif":         make([]byte, 64),
	}

	t.Run("keeps order and skips missing", func(t *testing.T) {
		l := NewAttachmentLoader(store, quiet)
		got, err := l.Load(context.Background(), []string{"dir/b.dcm", "missing.png", "a.png", `c:\scans\c.jpeg`})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "b.dcm", got[0].Name)
		assert.Equal(t, "application/dicom", got[0].ContentType)
		assert.Equal(t, "a.png", got[1].Name)
		assert.Equal(t, "image/png", got[1].ContentType)
		assert.Equal(t, "c.jpeg", got[2].Name)
		assert.Equal(t, []byte("jpeg"), got[2].Data)
	})

	t.Run("caps count", func(t *testing.T) {
		l := NewAttachmentLoader(store, quiet)
		l.MaxCount = 1
		got, err := l.Load(context.Background(), []string{"a.png", "dir/b.dcm"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a.png", got[0].Name)
	})

	t.Run("rejects oversized", func(t *testing.T) {
		l := NewAttachmentLoader(store, quiet)
		l.MaxBytes = 16
		_, err := l.Load(context.Background(), []string{"big.gif"})
		assert.ErrorContains(t, err, "exceeds 16 bytes")
	})

	t.Run("no store", func(t *testing.T) {
		l := NewAttachmentLoader(nil, quiet)
		got, err := l.Load(context.Background(), []string{"a.png"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
