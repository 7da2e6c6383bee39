// Package archive bundles a staging directory into a zip file.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

// NameFunc maps a staged file name to its name inside the archive.
type NameFunc func(name string) string

// ZipDirectory writes every completed regular file directly under dir into
// dest and returns the number of files archived. Archive names are produced by
// rename (identity when nil) and de-duplicated.
func ZipDirectory(ctx context.Context, dir, dest string, rename NameFunc) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read archive source: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp)

	zw := zip.NewWriter(out)
	used := make(map[string]int)
	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return 0, err
		}
		if !entry.Type().IsRegular() || staging.IsPartial(entry.Name()) {
			continue
		}
		name := entry.Name()
		if rename != nil {
			name = rename(name)
		}
		name = uniqueName(used, name)

		if err := addFile(zw, filepath.Join(dir, entry.Name()), name); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return 0, err
		}
		count++
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return 0, fmt.Errorf("move archive into place: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}

func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := fmt.Sprintf("%s (%d)%s", base, n+1, ext)
	for used[candidate] > 0 {
		n++
		candidate = fmt.Sprintf("%s (%d)%s", base, n+1, ext)
	}
	used[candidate] = 1
	return candidate
}
