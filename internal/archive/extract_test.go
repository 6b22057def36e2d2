package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdex/inkdex/pkg/types"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.zip")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	writer := zip.NewWriter(file)
	for name, content := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return path
}

func TestIsArchiveContentType(t *testing.T) {
	for _, ct := range []string{
		"application/zip",
		"application/x-zip-compressed",
		"application/x-7z-compressed",
		"application/x-xz",
		"application/x-rar-compressed",
		"application/vnd.rar",
	} {
		assert.True(t, IsArchiveContentType(ct), ct)
	}

	assert.False(t, IsArchiveContentType("image/png"))
	assert.False(t, IsArchiveContentType("application/pdf"))
	assert.False(t, IsArchiveContentType(""))
}

func TestExtractZip(t *testing.T) {
	archivePath := writeZip(t, map[string]string{
		"001.jpg": "page one",
		"002.png": "page two",
	})

	destDir := t.TempDir()
	paths, err := NewExtractor().Extract(context.Background(), archivePath, destDir, TypeZip)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	content, err := os.ReadFile(filepath.Join(destDir, "001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "page one", string(content))
}

func TestExtractMalformedArchive(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("this is not a zip file"), 0644))

	_, err := NewExtractor().Extract(context.Background(), archivePath, t.TempDir(), TypeZip)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBadInput)
	assert.Contains(t, err.Error(), "not supported")
}

func TestExtractUnknownContentType(t *testing.T) {
	archivePath := writeZip(t, map[string]string{"001.jpg": "x"})

	_, err := NewExtractor().Extract(context.Background(), archivePath, t.TempDir(), "application/pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBadInput)
}

func TestExtractSkipsTraversalEntries(t *testing.T) {
	archivePath := writeZip(t, map[string]string{
		"../escape.jpg": "nope",
		"ok.jpg":        "fine",
	})

	destDir := t.TempDir()
	paths, err := NewExtractor().Extract(context.Background(), archivePath, destDir, TypeZip)
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	assert.NoFileExists(t, filepath.Join(filepath.Dir(destDir), "escape.jpg"))
	assert.FileExists(t, filepath.Join(destDir, "ok.jpg"))
}

func TestImageFiles(t *testing.T) {
	destDir := t.TempDir()

	// Root-level mix of images and junk, plus a nested image that the
	// non-recursive listing must not pick up
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "001.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "002.WEBP"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "readme.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "Thumbs.db"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(destDir, "extras"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "extras", "bonus.png"), []byte("x"), 0644))

	names, err := ImageFiles(destDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"001.jpg", "002.WEBP"}, names)
}
