package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello World", "Hello_World"},
		{"reserved characters", `a<b>c:d"e/f\g|h?i*j`, "abcdefghij"},
		{"whitespace runs", "  lots   of\tspace  ", "lots_of_space"},
		{"only reserved", `<>:"/\|?*`, "untitled"},
		{"empty", "", "untitled"},
		{"unicode kept", "Café Über", "Café_Über"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_TruncatesRunes(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("é", 150))
	assert.Equal(t, 100, len([]rune(got)))
}

func TestTemplateAndClientName(t *testing.T) {
	sid := "0b7d9e2c-1111-2222-3333-444455556666"

	assert.Equal(t, "My_Clip_"+sid+".%(ext)s", Template("My Clip", RoleCombined, sid))
	assert.Equal(t, "My_Clip_video_"+sid+".%(ext)s", Template("My Clip", RoleVideo, sid))
	assert.Equal(t, "My_Clip_audio_"+sid+".%(ext)s", Template("My Clip", RoleAudio, sid))
	assert.Equal(t, "My_Clip_"+sid+".mp4", MergedName("My Clip", sid))

	assert.Equal(t, "My_Clip.mp4", ClientName("/tmp/x/My_Clip_"+sid+".mp4", sid))
	assert.Equal(t, "My_Clip_video.webm", ClientName("My_Clip_video_"+sid+".webm", sid))
}

func TestFind_NewestMatchingCompletedFile(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "clip_video_abc.webm")
	newer := filepath.Join(dir, "clip_video_abc.mp4")
	partial := filepath.Join(dir, "clip_video_abc.mp4.part")
	other := filepath.Join(dir, "clip_video_xyz.mp4")

	for _, p := range []string{old, newer, partial, other} {
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now.Add(-time.Minute), now.Add(-time.Minute)))
	require.NoError(t, os.Chtimes(partial, now, now))
	require.NoError(t, os.Chtimes(other, now, now))

	got, err := Find(dir, "video_abc")
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestFind_NoMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_other.mp4"), []byte("x"), 0o644))

	_, err := Find(dir, "missing")
	assert.ErrorIs(t, err, domain.ErrStagedFileNotFound)

	_, err = Find(filepath.Join(dir, "nope"), "missing")
	assert.ErrorIs(t, err, domain.ErrStagedFileNotFound)

	_, err = Find(dir, "")
	assert.ErrorIs(t, err, domain.ErrStagedFileNotFound)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small")
	require.NoError(t, os.WriteFile(small, make([]byte, 100), 0o644))

	var verr *domain.ValidationError
	err := Validate(small, 512)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(100), verr.Size)

	err = Validate(filepath.Join(dir, "missing"), 1)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(-1), verr.Size)

	assert.NoError(t, Validate(small, 100))
}

func TestRemoveSession(t *testing.T) {
	dir := t.TempDir()
	mine := filepath.Join(dir, "x_video_s1.webm")
	theirs := filepath.Join(dir, "x_video_s2.webm")
	require.NoError(t, os.WriteFile(mine, nil, 0o644))
	require.NoError(t, os.WriteFile(theirs, nil, 0o644))

	assert.Empty(t, RemoveSession(dir, "s1"))
	assert.NoFileExists(t, mine)
	assert.FileExists(t, theirs)
}
