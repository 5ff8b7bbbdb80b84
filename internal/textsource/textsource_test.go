package textsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("Should read plain text files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("Whales are mammals."), 0o644))

		doc, err := Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", doc.Name)
		assert.Equal(t, path, doc.Path)
		assert.Equal(t, "Whales are mammals.", doc.Content)
		assert.Equal(t, 1, doc.Pages)
	})

	t.Run("Should accept markdown regardless of extension case", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "README.MD")
		require.NoError(t, os.WriteFile(path, []byte("# Title"), 0o644))

		doc, err := Extract(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "# Title", doc.Content)
	})

	t.Run("Should reject unsupported extensions", func(t *testing.T) {
		_, err := Extract(ctx, "slides.pptx")
		assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
	})

	t.Run("Should report a missing file", func(t *testing.T) {
		_, err := Extract(ctx, filepath.Join(t.TempDir(), "absent.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Should reject bytes that are not a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.pdf")
		require.NoError(t, os.WriteFile(path, []byte("definitely not a pdf"), 0o644))

		_, err := Extract(ctx, path)
		assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
	})
}

func TestFromReader(t *testing.T) {
	t.Run("Should replace invalid utf8", func(t *testing.T) {
		doc, err := FromReader("bin.txt", strings.NewReader("ok\xffok"))
		require.NoError(t, err)
		assert.Equal(t, "ok�ok", doc.Content)
	})
}
