// Package staging names, discovers and validates files produced for a
// download session. Every staged file embeds the owning session id so that
// concurrent sessions sharing a directory never see each other's output.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

const (
	// MinStreamSize is the smallest acceptable downloaded video or audio stream.
	MinStreamSize int64 = 10 * 1024

	maxNameRunes = 100
	extPattern   = "%(ext)s"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace   = regexp.MustCompile(`\s+`)

	partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// SanitizeFilename makes a title safe to use as a file name component.
func SanitizeFilename(name string) string {
	name = invalidChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// Role tags the purpose of a staged file.
type Role string

const (
	RoleCombined Role = ""
	RoleVideo    Role = "video"
	RoleAudio    Role = "audio"
)

// Token is the discovery substring for a role within a session.
func Token(role Role, sessionID string) string {
	if role == RoleCombined {
		return sessionID
	}
	return string(role) + "_" + sessionID
}

// Template returns the provider output template for a staged stream.
func Template(title string, role Role, sessionID string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(title), Token(role, sessionID), extPattern)
}

// MergedName is the file name of a merged deliverable.
func MergedName(title, sessionID string) string {
	return fmt.Sprintf("%s_%s.mp4", SanitizeFilename(title), sessionID)
}

// ClientName strips the session id from a staged file name.
func ClientName(path, sessionID string) string {
	return strings.Replace(filepath.Base(path), "_"+sessionID, "", 1)
}

// IsPartial reports whether name looks like an in-flight provider file.
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Find returns the newest completed file in dir whose name contains token.
func Find(dir, token string) (string, error) {
	if token == "" {
		return "", domain.ErrStagedFileNotFound
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrStagedFileNotFound
		}
		return "", fmt.Errorf("read staging dir: %w", err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), token) || IsPartial(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, entry.Name())
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", domain.ErrStagedFileNotFound
	}
	return best, nil
}

// Size returns the size of path, or -1 when it does not exist.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// Validate checks that path exists and is at least min bytes.
func Validate(path string, min int64) error {
	size := Size(path)
	if size < min {
		return &domain.ValidationError{Path: path, Size: size, Min: min}
	}
	return nil
}

// RemoveSession deletes every file in dir that belongs to sessionID and
// returns the paths it could not remove.
func RemoveSession(dir, sessionID string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), sessionID) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errs
}
