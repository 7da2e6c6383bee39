package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestZipDirectory(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "list.zip")

	files := map[string]string{
		"First_sid-001.mp4":       "one",
		"Second_sid-002.mp4":      "two",
		"First_sid-003.mp4":       "three",
		"Broken_sid-004.mp4.part": "partial",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(body), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(src, "nested"), 0o755))

	strip := func(name string) string {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if idx := strings.LastIndex(base, "_sid-"); idx >= 0 {
			base = base[:idx]
		}
		return base + ext
	}

	n, err := ZipDirectory(context.Background(), src, dest, strip)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := readArchive(t, dest)
	names := make([]string, 0, len(got))
	for name := range got {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"First (2).mp4", "First.mp4", "Second.mp4"}, names)
	assert.Equal(t, "one", got["First.mp4"])
	assert.Equal(t, "three", got["First (2).mp4"])
	assert.NoFileExists(t, dest+".partial")
}

func TestZipDirectory_Empty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.zip")
	n, err := ZipDirectory(context.Background(), t.TempDir(), dest, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, readArchive(t, dest))
}

func TestZipDirectory_MissingSource(t *testing.T) {
	_, err := ZipDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x.zip"), nil)
	assert.Error(t, err)
}
