package sentinel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

const granulePath = "S2B_MSIL2A_20250531.SAFE/GRANULE/L2A_T60HWC/IMG_DATA/R10m/"

func TestUnpackerExpand(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "S2B_MSIL2A_20250531.SAFE.zip")
	writeZip(t, archive, map[string]string{
		granulePath + "T60HWC_B04_10m.jp2": "red",
		granulePath + "T60HWC_B08_10m.jp2": "nir",
	})
	dest := filepath.Join(dir, "work", "extract", "scene")

	err := NewUnpacker(nil).Expand(archive, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, granulePath, "T60HWC_B04_10m.jp2"))
	require.NoError(t, err)
	assert.Equal(t, "red", string(data))

	// expanding again overwrites instead of failing
	require.NoError(t, NewUnpacker(nil).Expand(archive, dest))
}

func TestUnpackerExpandRejectsBadArchives(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		dir := t.TempDir()
		archive := filepath.Join(dir, "notes.zip")
		require.NoError(t, os.WriteFile(archive, []byte("plain text, not an archive\n"), 0644))

		err := NewUnpacker(nil).Expand(archive, filepath.Join(dir, "out"))
		var archiveErr *ArchiveError
		require.True(t, errors.As(err, &archiveErr))
		assert.Equal(t, archive, archiveErr.Archive)
		assert.ErrorIs(t, err, ErrNotZip)
	})

	t.Run("truncated zip", func(t *testing.T) {
		dir := t.TempDir()
		archive := filepath.Join(dir, "broken.zip")
		require.NoError(t, os.WriteFile(archive, []byte("PK\x03\x04\x14\x00\x00\x00truncated"), 0644))

		err := NewUnpacker(nil).Expand(archive, filepath.Join(dir, "out"))
		var archiveErr *ArchiveError
		require.True(t, errors.As(err, &archiveErr))
		assert.Contains(t, err.Error(), "broken.zip")
	})

	t.Run("entry escaping the destination", func(t *testing.T) {
		dir := t.TempDir()
		archive := filepath.Join(dir, "evil.zip")
		writeZip(t, archive, map[string]string{"../escaped.txt": "x"})
		dest := filepath.Join(dir, "out")

		err := NewUnpacker(nil).Expand(archive, dest)
		var archiveErr *ArchiveError
		require.True(t, errors.As(err, &archiveErr))
		assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
	})
}

func TestUnpackerUnpackAll(t *testing.T) {
	folder := t.TempDir()
	extractRoot := filepath.Join(t.TempDir(), "extracted")

	writeZip(t, filepath.Join(folder, "A.SAFE.zip"), map[string]string{"A.SAFE/B04_10m.jp2": "a"})
	require.NoError(t, os.WriteFile(filepath.Join(folder, "B.SAFE.zip"), []byte("corrupt"), 0644))
	writeZip(t, filepath.Join(folder, "C.SAFE.ZIP"), map[string]string{"C.SAFE/B04_10m.jp2": "c"})
	require.NoError(t, os.WriteFile(filepath.Join(folder, "readme.txt"), []byte("skip me"), 0644))

	expanded, err := NewUnpacker(nil).UnpackAll(folder, extractRoot)

	require.Error(t, err)
	var archiveErr *ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.Equal(t, filepath.Join(folder, "B.SAFE.zip"), archiveErr.Archive)

	assert.Equal(t, []string{
		filepath.Join(extractRoot, "A.SAFE"),
		filepath.Join(extractRoot, "C.SAFE"),
	}, expanded)
	assert.FileExists(t, filepath.Join(extractRoot, "A.SAFE", "A.SAFE", "B04_10m.jp2"))
	assert.FileExists(t, filepath.Join(extractRoot, "C.SAFE", "C.SAFE", "B04_10m.jp2"))
}

func TestArchiveScene(t *testing.T) {
	assert.Equal(t, "S2A_MSIL2A_20250531", ArchiveScene("/data/in/S2A_MSIL2A_20250531.SAFE.zip"))
	assert.Equal(t, "product", ArchiveScene("product.ZIP"))
}

func TestUnpackAllMissingFolder(t *testing.T) {
	_, err := NewUnpacker(nil).UnpackAll(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}
