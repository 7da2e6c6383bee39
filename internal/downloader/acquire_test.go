package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
	"github.com/NikunjBaldaniya/AnyviDow/internal/provider"
	"github.com/NikunjBaldaniya/AnyviDow/internal/session"
	"github.com/NikunjBaldaniya/AnyviDow/internal/staging"
)

func TestAcquirer_Acquire(t *testing.T) {
	dir := t.TempDir()
	sessions := session.NewRegistry()
	sid := sessions.Create()
	fp := &fakeProvider{ext: "webm"}
	a := NewAcquirer(fp, sessions, nil)

	var updates atomic.Int32
	path, err := a.Acquire(context.Background(), sid, AcquireRequest{
		URL:      "https://example.com/v",
		Selector: "137",
		Fallback: FallbackSelector,
		Dir:      dir,
		Template: staging.Template("Clip", staging.RoleVideo, sid),
		Token:    staging.Token(staging.RoleVideo, sid),
		Phase:    domain.PhaseVideo,
	}, func(provider.Progress) { updates.Add(1) })

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Clip_video_"+sid+".webm"), path)
	assert.Equal(t, []string{"137/bv*+ba/b"}, fp.formats())
	assert.Equal(t, int32(2), updates.Load())
}

func TestAcquireRequest_Format(t *testing.T) {
	assert.Equal(t, "140/ba/b", AcquireRequest{Selector: "140", Fallback: AudioFallbackSelector}.format())
	assert.Equal(t, "best", AcquireRequest{Selector: "best"}.format())
	assert.Equal(t, FallbackSelector, AcquireRequest{Fallback: FallbackSelector}.format())
	assert.Equal(t, "bestvideo[height<=720]+bestaudio/best[height<=720]/best", PlaylistSelector(720))
}

func TestAcquirer_CancelDuringTransfer(t *testing.T) {
	dir := t.TempDir()
	sessions := session.NewRegistry()
	sid := sessions.Create()

	var forwarded atomic.Int32
	fp := &fakeProvider{behave: blockUntilCancelled}
	a := NewAcquirer(fp, sessions, nil)

	_, err := a.Acquire(context.Background(), sid, AcquireRequest{
		URL: "https://example.com/v", Dir: dir, Template: "x_" + sid + ".%(ext)s", Token: sid,
	}, func(provider.Progress) {
		if forwarded.Add(1) == 3 {
			sessions.Cancel(sid)
		}
	})

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, int32(3), forwarded.Load())
	_, findErr := staging.Find(dir, sid)
	assert.ErrorIs(t, findErr, domain.ErrStagedFileNotFound)
}

func TestAcquirer_AlreadyCancelled(t *testing.T) {
	sessions := session.NewRegistry()
	sid := sessions.Create()
	sessions.Cancel(sid)
	fp := &fakeProvider{}

	_, err := NewAcquirer(fp, sessions, nil).Acquire(context.Background(), sid, AcquireRequest{Dir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, fp.formats())
}

func TestAcquirer_ProviderFailure(t *testing.T) {
	sessions := session.NewRegistry()
	sid := sessions.Create()
	fp := &fakeProvider{behave: func(context.Context, provider.DownloadRequest, func(provider.Progress)) error {
		return errors.New("HTTP Error 403")
	}}

	_, err := NewAcquirer(fp, sessions, nil).Acquire(context.Background(), sid, AcquireRequest{
		Dir: t.TempDir(), Token: sid, Phase: domain.PhaseAudio,
	}, nil)

	var aerr *domain.AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, domain.PhaseAudio, aerr.Phase)
}

func TestAcquirer_NoStagedFile(t *testing.T) {
	dir := t.TempDir()
	sessions := session.NewRegistry()
	sid := sessions.Create()
	fp := &fakeProvider{}

	_, err := NewAcquirer(fp, sessions, nil).Acquire(context.Background(), sid, AcquireRequest{
		Dir: dir, Template: "unrelated.%(ext)s", Token: sid,
	}, nil)

	var aerr *domain.AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, domain.ErrStagedFileNotFound)
}
